// Package service wires the matching engine, its storage and the ranking
// pipeline, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/scout/internal/adapters/inbox"
	"github.com/okian/scout/internal/adapters/mq/queue"
	"github.com/okian/scout/internal/adapters/mq/worker"
	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/scheduler"
	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/domain/dedupe"
	"github.com/okian/scout/internal/domain/features"
	"github.com/okian/scout/internal/domain/feedback"
	"github.com/okian/scout/internal/domain/matching"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/internal/domain/preference"
	"github.com/okian/scout/pkg/logger"
)

const (
	stopTimeout     = 30 * time.Second
	insightsEntries = 10
)

// Service owns every engine component for one user.
type Service struct {
	mu sync.RWMutex

	// Configuration
	storage         repository.Settings
	topK            int
	prefixRunes     int
	learningRate    float64
	temperature     float64
	neutralScore    float64
	minDisplayScore float64
	schedule        string
	autoDiscovery   bool
	feedPath        string
	queueSize       int
	workerCount     int
	inboxSize       int

	// Components
	store     repository.Store
	ownsStore bool
	registry  *dedupe.Store
	model     *preference.Model
	engine    *matching.Engine
	loop      *feedback.Loop
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	inbox     *inbox.Inbox
	source    source.Source
	scheduler *scheduler.Scheduler

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service with default configuration. Components are built
// by Start.
func New(opts ...Option) *Service {
	s := &Service{
		storage:      repository.Settings{Backend: repository.BackendMemory},
		topK:         features.DefaultTopK,
		prefixRunes:  dedupe.DefaultPrefixRunes,
		learningRate: 1,
		temperature:  4,
		neutralScore: 50,
		schedule:     "@every 10m",
		queueSize:    1000,
		workerCount:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, restores the model and starts the workers and, when
// enabled, the discovery scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting scout service...", logger.String("storage", s.storage.Backend))

	if err := s.build(ctx); err != nil {
		s.closeStore(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	if s.scheduler != nil {
		if err := s.scheduler.Start(runCtx); err != nil {
			cancel()
			_ = s.pool.Shutdown(ctx)
			s.closeStore(ctx)
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	s.started = true
	s.logger.Info(ctx, "scout service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("discovery", s.scheduler != nil),
	)
	return nil
}

func (s *Service) build(ctx context.Context) error {
	if s.store == nil {
		st, err := repository.Open(ctx, s.storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		s.store = st
		s.ownsStore = true
	}

	var err error
	s.registry, err = dedupe.NewStore(s.store, dedupe.WithPrefixRunes(s.prefixRunes))
	if err != nil {
		return err
	}
	extractor, err := features.NewExtractor(features.WithTopK(s.topK))
	if err != nil {
		return err
	}
	s.model, err = preference.NewModel(s.store,
		preference.WithLearningRate(s.learningRate),
		preference.WithTemperature(s.temperature),
		preference.WithNeutralScore(s.neutralScore),
	)
	if err != nil {
		return err
	}
	if err := s.model.Load(ctx, s.store); err != nil {
		return fmt.Errorf("restore model: %w", err)
	}

	s.engine = matching.NewEngine(s.registry, extractor, s.model, matching.WithMinDisplayScore(s.minDisplayScore))
	s.loop = feedback.NewLoop(s.engine, s.store, s.model)
	s.inbox = inbox.New(inbox.WithMaxSize(s.inboxSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.engine, s.inbox)

	s.scheduler = nil
	if s.autoDiscovery {
		src := s.source
		if src == nil {
			src = source.NewFileSource(s.feedPath)
		}
		s.scheduler, err = scheduler.New(src, s.queue, s.schedule)
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop stops discovery, drains the queue and closes storage it opened.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping scout service...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.cancel()
	s.closeStore(ctx)

	s.started = false
	s.logger.Info(ctx, "scout service stopped")
}

func (s *Service) closeStore(ctx context.Context) {
	if s.store == nil || !s.ownsStore {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}
	s.store = nil
	s.ownsStore = false
}

func (s *Service) running() error {
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Rank deduplicates, scores and orders postings. Results also enter the
// recommendation inbox.
func (s *Service) Rank(ctx context.Context, postings []model.Posting) ([]model.RankedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}

	results, err := s.engine.Rank(ctx, postings)
	if err != nil {
		return nil, err
	}
	s.inbox.Put(results)
	return results, nil
}

// IsDuplicate reports whether p was already registered.
func (s *Service) IsDuplicate(ctx context.Context, p model.Posting) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return false, err
	}
	return s.engine.IsDuplicate(ctx, p)
}

// EnqueueBatch submits a batch for asynchronous ranking. It returns false on
// backpressure or when the service is stopped.
func (s *Service) EnqueueBatch(ctx context.Context, b model.Batch) bool { //nolint:gocritic // hugeParam: batches travel by value
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running() != nil {
		return false
	}
	return s.queue.Enqueue(ctx, b)
}

// RecordDecision applies a verdict and clears the recommendation from the
// inbox.
func (s *Service) RecordDecision(ctx context.Context, fp model.Fingerprint, verdict model.Verdict) (model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return model.Decision{}, err
	}

	d, err := s.loop.RecordDecision(ctx, fp, verdict)
	if err != nil {
		return model.Decision{}, err
	}
	s.inbox.Remove(fp)
	return d, nil
}

// History returns every decision recorded for fp, oldest first.
func (s *Service) History(ctx context.Context, fp model.Fingerprint) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.loop.History(ctx, fp)
}

// Recommendations returns the n best undecided results.
func (s *Service) Recommendations(_ context.Context, n int) ([]model.RankedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.inbox.Top(n)
}

// Fingerprint returns the dedup key for p without registering it.
func (s *Service) Fingerprint(p model.Posting) (model.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return "", err
	}
	return s.registry.Fingerprint(p), nil
}

// Flagged lists postings whose identity was empty and need manual review.
func (s *Service) Flagged() []model.Posting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running() != nil {
		return nil
	}
	return s.registry.Flagged()
}

// Insights summarizes learned preferences.
func (s *Service) Insights(n int) (preference.Insights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return preference.Insights{}, err
	}
	return s.model.Insights(n), nil
}

// RunDiscovery triggers one discovery run outside the schedule.
func (s *Service) RunDiscovery(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return 0, err
	}
	if s.scheduler == nil {
		return 0, ErrDiscoveryDisabled
	}
	return s.scheduler.RunOnce(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"storage":     s.storage.Backend,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(ctx)
	stats["inbox"] = s.inbox.Len()
	stats["flagged"] = len(s.registry.Flagged())
	stats["discovery"] = s.scheduler != nil
	if n, err := s.store.Count(ctx); err == nil {
		stats["fingerprints"] = n
	} else {
		s.logger.Warn(ctx, "count fingerprints", logger.Error(err))
	}
	stats["insights"] = s.model.Insights(insightsEntries)
	return stats
}
