package service

import (
	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig copies engine, storage and pipeline settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.storage = repository.Settings{
			Backend:     cfg.Storage,
			SQLitePath:  cfg.SQLitePath,
			PostgresURL: cfg.PostgresURL,
			RedisURL:    cfg.RedisURL,
		}
		s.topK = cfg.TopK
		s.prefixRunes = cfg.FingerprintPrefix
		s.learningRate = cfg.LearningRate
		s.temperature = cfg.Temperature
		s.neutralScore = cfg.NeutralScore
		s.minDisplayScore = cfg.MinDisplayScore
		s.schedule = cfg.DiscoverySchedule
		s.autoDiscovery = cfg.AutoDiscovery
		s.feedPath = cfg.FeedPath
		if cfg.QueueSize > 0 {
			s.queueSize = cfg.QueueSize
		}
		if cfg.WorkerCount > 0 {
			s.workerCount = cfg.WorkerCount
		}
	}
}

// WithWorkerCount sets the number of ranking workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued batches.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInboxSize caps the number of pending recommendations.
func WithInboxSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.inboxSize = size
		}
	}
}

// WithStore injects an already opened store instead of opening one from the
// storage settings. The caller keeps ownership and closes it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithSource sets the discovery source and turns periodic discovery on.
func WithSource(src source.Source, schedule string) Option {
	return func(s *Service) {
		if src == nil {
			return
		}
		s.source = src
		s.autoDiscovery = true
		if schedule != "" {
			s.schedule = schedule
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
