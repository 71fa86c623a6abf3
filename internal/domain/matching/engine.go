// Package matching ranks batches of candidate postings against the learned
// preferences.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/scout/internal/domain/features"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Registry is the fingerprint store as seen by the engine.
type Registry interface {
	Register(ctx context.Context, p model.Posting) (model.Registration, error)
	IsDuplicate(ctx context.Context, p model.Posting) (bool, error)
	Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error)
	Forget(ctx context.Context, fp model.Fingerprint) error
}

// Extractor derives feature records.
type Extractor interface {
	Extract(p model.Posting) model.FeatureRecord
}

// Scorer scores a batch of records against one weight snapshot.
type Scorer interface {
	ScoreAll(recs []model.FeatureRecord) []float64
}

// Engine filters, scores and orders candidate postings.
type Engine struct {
	registry  Registry
	extractor Extractor
	scorer    Scorer
	minScore  float64
	cache     *featureCache
	logger    logger.Logger
}

// NewEngine wires an engine from its collaborators.
func NewEngine(registry Registry, extractor Extractor, scorer Scorer, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		extractor: extractor,
		scorer:    scorer,
		cache:     newFeatureCache(DefaultCacheSize),
		logger:    logger.Get().Named("matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	posting model.Posting
	fp      model.Fingerprint
	rec     model.FeatureRecord
}

// Rank registers every new posting, scores the survivors and returns them
// best first. Duplicates, including repeats within the batch, are dropped.
// Ties are broken by earlier discovery and then by external key. If the
// store fails part way, the registrations made by this call are undone and
// the error is returned.
func (e *Engine) Rank(ctx context.Context, postings []model.Posting) ([]model.RankedResult, error) {
	if len(postings) == 0 {
		return []model.RankedResult{}, nil
	}
	start := time.Now()
	metrics.RecordPostingsReceived(len(postings))

	var (
		inserted   []model.Fingerprint
		candidates = make([]candidate, 0, len(postings))
		inBatch    = make(map[model.Fingerprint]struct{}, len(postings))
	)
	for _, p := range postings {
		if err := features.Validate(p); err != nil {
			metrics.RecordPostingMalformed()
			e.logger.Warn(ctx, "malformed posting", logger.String("key", p.Key()), logger.Error(err))
		}

		reg, err := e.registry.Register(ctx, p)
		if err != nil {
			e.rollback(ctx, inserted)
			return nil, fmt.Errorf("rank: %w", err)
		}
		if reg.Inserted {
			inserted = append(inserted, reg.Fingerprint)
		} else if !reg.Flagged {
			continue
		}
		if _, dup := inBatch[reg.Fingerprint]; dup {
			continue
		}
		inBatch[reg.Fingerprint] = struct{}{}
		candidates = append(candidates, candidate{posting: p, fp: reg.Fingerprint})
	}

	recs := make([]model.FeatureRecord, len(candidates))
	for i := range candidates {
		candidates[i].rec = e.extractor.Extract(candidates[i].posting)
		e.cache.put(candidates[i].fp, candidates[i].rec)
		recs[i] = candidates[i].rec
	}
	scores := e.scorer.ScoreAll(recs)

	results := make([]model.RankedResult, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] < e.minScore {
			continue
		}
		results = append(results, model.RankedResult{
			Posting:     c.posting,
			Fingerprint: c.fp,
			Score:       scores[i],
			Tier:        model.TierFor(scores[i]),
		})
	}
	Sort(results)
	for i := range results {
		results[i].Rank = i + 1
	}

	metrics.RecordRank(float64(time.Since(start).Microseconds())/1000, len(results))
	e.logger.Debug(ctx, "ranked batch",
		logger.Int("received", len(postings)),
		logger.Int("new", len(candidates)),
		logger.Int("shown", len(results)),
	)
	return results, nil
}

func (e *Engine) rollback(ctx context.Context, fps []model.Fingerprint) {
	metrics.RecordRankRollback()
	for _, fp := range fps {
		e.cache.drop(fp)
		if err := e.registry.Forget(ctx, fp); err != nil {
			e.logger.Error(ctx, "rollback failed, fingerprint stays registered",
				logger.String("fingerprint", fp.Short()),
				logger.Error(err),
			)
		}
	}
	e.logger.Warn(ctx, "rank aborted, registrations rolled back", logger.Int("count", len(fps)))
}

// Sort orders results by score descending, then earlier discovery, then
// external key, then fingerprint.
func Sort(results []model.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Posting.DiscoveredAt.Equal(b.Posting.DiscoveredAt) {
			return a.Posting.DiscoveredAt.Before(b.Posting.DiscoveredAt)
		}
		if ak, bk := a.Posting.Key(), b.Posting.Key(); ak != bk {
			return ak < bk
		}
		return a.Fingerprint < b.Fingerprint
	})
}

// Features returns the feature record for a registered fingerprint. Cache
// misses are re-extracted from the stored posting.
func (e *Engine) Features(ctx context.Context, fp model.Fingerprint) (model.FeatureRecord, error) {
	if rec, ok := e.cache.get(fp); ok {
		return rec, nil
	}
	p, err := e.registry.Lookup(ctx, fp)
	if err != nil {
		return model.FeatureRecord{}, err
	}
	rec := e.extractor.Extract(p)
	e.cache.put(fp, rec)
	return rec, nil
}

// IsDuplicate reports whether p has been registered before.
func (e *Engine) IsDuplicate(ctx context.Context, p model.Posting) (bool, error) {
	return e.registry.IsDuplicate(ctx, p)
}

// Lookup returns the stored posting for fp.
func (e *Engine) Lookup(ctx context.Context, fp model.Fingerprint) (model.Posting, error) {
	return e.registry.Lookup(ctx, fp)
}
