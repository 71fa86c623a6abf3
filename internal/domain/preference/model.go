// Package preference holds the learned weights and turns feature records into
// scores.
package preference

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Journal persists a decision together with the weight delta it causes.
// Commit must be all-or-nothing.
type Journal interface {
	Commit(ctx context.Context, d model.Decision, delta model.Delta) error
}

// StateLoader reads back persisted model state.
type StateLoader interface {
	LoadState(ctx context.Context) (model.ModelState, error)
}

// Change is one verdict to be learned.
type Change struct {
	Fingerprint model.Fingerprint
	Verdict     model.Verdict
	Features    model.FeatureRecord
	// Prior is the latest earlier decision on the same fingerprint, if any.
	Prior *model.Decision
}

type weight struct {
	value float64
	seen  int
}

// Model is the preference model. Score and ScoreAll may run concurrently with
// each other; Update is exclusive.
type Model struct {
	mu        sync.RWMutex
	weights   map[model.FeatureKey]*weight
	decisions int
	approved  int
	refused   int

	journal      Journal
	learningRate float64
	temperature  float64
	neutral      float64
	bias         float64

	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

// NewModel returns an empty model that persists through journal.
func NewModel(journal Journal, opts ...Option) (*Model, error) {
	if journal == nil {
		return nil, ErrNilJournal
	}
	m := &Model{
		weights:      make(map[model.FeatureKey]*weight),
		journal:      journal,
		learningRate: DefaultLearningRate,
		temperature:  DefaultTemperature,
		neutral:      DefaultNeutralScore,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		logger:       logger.Get().Named("preference"),
	}
	for _, opt := range opts {
		opt(m)
	}

	switch {
	case m.learningRate <= 0:
		return nil, fmt.Errorf("%w: learning rate %v", ErrInvalidParameter, m.learningRate)
	case m.temperature <= 0:
		return nil, fmt.Errorf("%w: temperature %v", ErrInvalidParameter, m.temperature)
	case m.neutral <= 0 || m.neutral >= 100:
		return nil, fmt.Errorf("%w: neutral score %v", ErrInvalidParameter, m.neutral)
	}
	p := m.neutral / 100
	m.bias = math.Log(p / (1 - p))
	return m, nil
}

// Load replaces the in-memory state with what src has persisted.
func (m *Model) Load(ctx context.Context, src StateLoader) error {
	state, err := src.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load model state: %w", err)
	}

	m.mu.Lock()
	m.weights = make(map[model.FeatureKey]*weight, len(state.Weights))
	for _, w := range state.Weights {
		m.weights[w.FeatureKey] = &weight{value: w.Weight, seen: w.Seen}
	}
	m.decisions = state.Decisions
	m.approved = state.Approved
	m.refused = state.Refused
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info(ctx, "model state loaded",
		logger.Int("features", len(state.Weights)),
		logger.Int("decisions", state.Decisions),
	)
	return nil
}

// Score returns rec's score in [0,100]. A record with no learned features
// scores exactly the neutral value.
func (m *Model) Score(rec model.FeatureRecord) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scoreLocked(rec)
}

// ScoreAll scores every record against the same weight snapshot.
func (m *Model) ScoreAll(recs []model.FeatureRecord) []float64 {
	out := make([]float64, len(recs))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, rec := range recs {
		out[i] = m.scoreLocked(rec)
	}
	return out
}

func (m *Model) scoreLocked(rec model.FeatureRecord) float64 {
	raw := 0.0
	for _, kw := range keywordOrder(rec) {
		raw += m.valueLocked(model.GroupKeyword, kw) * float64(rec.Keywords[kw])
	}
	if rec.Company != "" {
		raw += m.valueLocked(model.GroupCompany, rec.Company)
	}
	if rec.Category != "" {
		raw += m.valueLocked(model.GroupCategory, string(rec.Category))
	}
	if rec.Remote {
		raw += m.valueLocked(model.GroupRemote, model.RemoteYes)
	}
	return m.squash(raw)
}

// squash maps an unbounded raw sum into [0,100]; zero maps to the neutral
// score.
func (m *Model) squash(raw float64) float64 {
	x := raw/m.temperature + m.bias
	return 100 / (1 + math.Exp(-x))
}

func (m *Model) valueLocked(g model.Group, feature string) float64 {
	if w, ok := m.weights[model.FeatureKey{Group: g, Feature: feature}]; ok {
		return w.value
	}
	return 0
}

// keywordOrder returns the record's keywords in a fixed order so float sums
// are reproducible.
func keywordOrder(rec model.FeatureRecord) []string {
	if len(rec.KeywordOrder) == len(rec.Keywords) {
		return rec.KeywordOrder
	}
	keys := make([]string, 0, len(rec.Keywords))
	for k := range rec.Keywords {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update learns one verdict. The decision and its delta are committed through
// the journal before memory changes; if the journal fails the model is left
// exactly as it was.
func (m *Model) Update(ctx context.Context, c Change) (model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := model.Decision{
		ID:          m.newID(),
		Fingerprint: c.Fingerprint,
		Verdict:     c.Verdict,
		DecidedAt:   m.now(),
		Features:    c.Features,
	}

	var delta model.Delta
	if c.Prior == nil {
		d.Steps, delta = m.firstDecisionLocked(c)
	} else {
		d.Supersedes = c.Prior.ID
		d.Steps, delta = redecision(c)
	}

	if err := m.journal.Commit(ctx, d, delta); err != nil {
		m.logger.Error(ctx, "decision not committed",
			logger.String("fingerprint", c.Fingerprint.Short()),
			logger.Error(err),
		)
		return model.Decision{}, fmt.Errorf("commit decision: %w", wrapStorage(err))
	}

	m.applyLocked(delta)
	m.publishLocked()
	return d, nil
}

func (m *Model) firstDecisionLocked(c Change) ([]model.Step, model.Delta) {
	keys := c.Features.Keys()
	steps := make([]model.Step, 0, len(keys))
	delta := model.Delta{
		Adjustments: make([]model.Adjustment, 0, len(keys)),
		Decisions:   1,
	}
	sign := c.Verdict.Sign()
	for _, k := range keys {
		seen := 0
		if w, ok := m.weights[k]; ok {
			seen = w.seen
		}
		step := m.learningRate / math.Sqrt(1+float64(seen))
		steps = append(steps, model.Step{FeatureKey: k, Magnitude: step})
		delta.Adjustments = append(delta.Adjustments, model.Adjustment{FeatureKey: k, Weight: sign * step, Seen: 1})
	}
	if c.Verdict == model.VerdictApprove {
		delta.Approved = 1
	} else {
		delta.Refused = 1
	}
	return steps, delta
}

// redecision reuses the prior step magnitudes so the net effect of any
// sequence of verdicts equals one step of the latest verdict.
func redecision(c Change) ([]model.Step, model.Delta) {
	prior := c.Prior
	steps := make([]model.Step, len(prior.Steps))
	copy(steps, prior.Steps)

	var delta model.Delta
	diff := c.Verdict.Sign() - prior.Verdict.Sign()
	if diff == 0 {
		return steps, delta
	}
	for _, s := range steps {
		delta.Adjustments = append(delta.Adjustments, model.Adjustment{FeatureKey: s.FeatureKey, Weight: diff * s.Magnitude})
	}
	if c.Verdict == model.VerdictApprove {
		delta.Approved, delta.Refused = 1, -1
	} else {
		delta.Approved, delta.Refused = -1, 1
	}
	return steps, delta
}

func (m *Model) applyLocked(delta model.Delta) {
	for _, adj := range delta.Adjustments {
		w, ok := m.weights[adj.FeatureKey]
		if !ok {
			w = &weight{}
			m.weights[adj.FeatureKey] = w
		}
		w.value += adj.Weight
		w.seen += adj.Seen
	}
	m.decisions += delta.Decisions
	m.approved += delta.Approved
	m.refused += delta.Refused
}

func (m *Model) publishLocked() {
	counts := make(map[model.Group]int, len(model.Groups))
	for k := range m.weights {
		counts[k.Group]++
	}
	for _, g := range model.Groups {
		metrics.UpdateModelFeatures(string(g), counts[g])
	}
	metrics.UpdateModelDecisions(m.decisions)
}

// Weight returns the learned weight and seen count for a feature.
func (m *Model) Weight(k model.FeatureKey) (float64, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.weights[k]; ok {
		return w.value, w.seen
	}
	return 0, 0
}

// Snapshot returns a copy of the current state ordered by group then feature.
func (m *Model) Snapshot() model.ModelState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := model.ModelState{
		Weights:   make([]model.FeatureWeight, 0, len(m.weights)),
		Decisions: m.decisions,
		Approved:  m.approved,
		Refused:   m.refused,
	}
	for k, w := range m.weights {
		state.Weights = append(state.Weights, model.FeatureWeight{FeatureKey: k, Weight: w.value, Seen: w.seen})
	}
	sort.Slice(state.Weights, func(i, j int) bool {
		a, b := state.Weights[i], state.Weights[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Feature < b.Feature
	})
	return state
}
