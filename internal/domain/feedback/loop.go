// Package feedback records user verdicts and feeds them to the preference
// model.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/internal/domain/preference"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// FeatureSource resolves a fingerprint to its feature record. Unknown
// fingerprints yield model.ErrNotFound.
type FeatureSource interface {
	Features(ctx context.Context, fp model.Fingerprint) (model.FeatureRecord, error)
}

// DecisionLog is the append-only decision history.
type DecisionLog interface {
	Latest(ctx context.Context, fp model.Fingerprint) (model.Decision, bool, error)
	History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error)
}

// Learner applies a verdict to the model.
type Learner interface {
	Update(ctx context.Context, c preference.Change) (model.Decision, error)
}

// Loop is the single entry point for decisions.
type Loop struct {
	features FeatureSource
	log      DecisionLog
	learner  Learner
	logger   logger.Logger

	// serializes read-latest-then-update so two verdicts on one fingerprint
	// cannot both be treated as first decisions
	mu sync.Mutex
}

// Option applies a configuration option to the Loop.
type Option func(*Loop)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// NewLoop wires a feedback loop.
func NewLoop(features FeatureSource, log DecisionLog, learner Learner, opts ...Option) *Loop {
	l := &Loop{
		features: features,
		log:      log,
		learner:  learner,
		logger:   logger.Get().Named("feedback"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordDecision learns verdict for the posting behind fp. It returns
// model.ErrNotFound, leaving the model untouched, when fp was never
// registered.
func (l *Loop) RecordDecision(ctx context.Context, fp model.Fingerprint, verdict model.Verdict) (model.Decision, error) {
	if verdict != model.VerdictApprove && verdict != model.VerdictRefuse {
		return model.Decision{}, fmt.Errorf("%w: %q", model.ErrInvalidVerdict, verdict)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.features.Features(ctx, fp)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			metrics.RecordDecisionNotFound()
			l.logger.Info(ctx, "decision for unknown posting", logger.String("fingerprint", fp.Short()))
		}
		return model.Decision{}, fmt.Errorf("record decision %s: %w", fp.Short(), err)
	}

	prior, redecision, err := l.log.Latest(ctx, fp)
	if err != nil {
		return model.Decision{}, fmt.Errorf("record decision %s: %w", fp.Short(), err)
	}

	change := preference.Change{Fingerprint: fp, Verdict: verdict, Features: rec}
	if redecision {
		change.Prior = &prior
	}
	d, err := l.learner.Update(ctx, change)
	if err != nil {
		return model.Decision{}, fmt.Errorf("record decision %s: %w", fp.Short(), err)
	}

	metrics.RecordDecision(string(verdict), redecision)
	l.logger.Info(ctx, "decision recorded",
		logger.String("fingerprint", fp.Short()),
		logger.String("verdict", string(verdict)),
		logger.Bool("redecision", redecision),
	)
	return d, nil
}

// History returns every decision recorded for fp, oldest first.
func (l *Loop) History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error) {
	ds, err := l.log.History(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", fp.Short(), err)
	}
	return ds, nil
}
