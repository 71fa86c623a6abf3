// Package scheduler periodically pulls postings from a source and queues them
// for ranking.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// Enqueuer accepts batches for asynchronous ranking.
type Enqueuer interface {
	Enqueue(ctx context.Context, b model.Batch) bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to stamp batches.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler wraps robfig/cron and runs discovery on a schedule.
type Scheduler struct {
	cron  *cron.Cron
	spec  string
	src   source.Source
	queue Enqueuer
	now   func() time.Time

	mu      sync.Mutex
	started bool
	runs    sync.WaitGroup

	logger logger.Logger
}

// New validates spec and creates a Scheduler. Standard five-field specs and
// descriptors such as "@every 10m" are accepted.
func New(src source.Source, queue Enqueuer, spec string, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}
	s := &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		src:    src,
		queue:  queue,
		now:    time.Now,
		logger: logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the job, starts cron and runs one discovery immediately so
// the inbox fills without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.cron.Start()
	s.started = true
	s.logger.Info(ctx, "scheduler started", logger.String("spec", s.spec), logger.String("source", s.src.Name()))

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.run(ctx)
	}()
	return nil
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.runs.Wait()
	s.started = false
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error(ctx, "discovery run failed", logger.String("source", s.src.Name()), logger.Error(err))
	}
}

// RunOnce fetches from the source and enqueues one batch. It returns the
// number of postings queued; an empty fetch queues nothing.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	name := s.src.Name()
	postings, err := s.src.Fetch(ctx)
	if err != nil {
		metrics.RecordDiscoveryRun(name, "error")
		return 0, fmt.Errorf("fetch %s: %w", name, err)
	}
	if len(postings) == 0 {
		metrics.RecordDiscoveryRun(name, "empty")
		s.logger.Debug(ctx, "nothing discovered", logger.String("source", name))
		return 0, nil
	}

	b := model.Batch{
		ID:         uuid.NewString(),
		Source:     name,
		Postings:   postings,
		ReceivedAt: s.now().UTC(),
	}
	if !s.queue.Enqueue(ctx, b) {
		metrics.RecordDiscoveryRun(name, "rejected")
		return 0, fmt.Errorf("batch %s: %w", b.ID, ErrBackpressure)
	}

	metrics.RecordDiscoveryRun(name, "ok")
	s.logger.Info(ctx, "discovery batch queued",
		logger.String("source", name),
		logger.String("batch", b.ID),
		logger.Int("postings", len(postings)),
	)
	return len(postings), nil
}
