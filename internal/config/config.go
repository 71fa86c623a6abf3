// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and SCOUT_* env vars.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Storage selects the persistence backend: memory, sqlite or postgres.
	Storage     string `koanf:"storage"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresURL string `koanf:"postgres_url"`
	// RedisURL, when set, moves the fingerprint index to Redis.
	RedisURL string `koanf:"redis_url"`

	// TopK bounds the number of keywords kept per posting.
	TopK int `koanf:"top_k"`
	// FingerprintPrefix is the description prefix length (runes) fed into the digest.
	FingerprintPrefix int `koanf:"fingerprint_prefix"`

	// LearningRate is the base step applied per decision.
	LearningRate float64 `koanf:"learning_rate"`
	// Temperature stretches the logistic transform; larger values saturate slower.
	Temperature float64 `koanf:"temperature"`
	// NeutralScore is the score of a posting with no learned signal.
	NeutralScore float64 `koanf:"neutral_score"`
	// MinDisplayScore hides results below this score.
	MinDisplayScore float64 `koanf:"min_display_score"`

	// DiscoverySchedule is a cron spec for periodic discovery.
	DiscoverySchedule string `koanf:"discovery_schedule"`
	AutoDiscovery     bool   `koanf:"auto_discovery"`
	// FeedPath points at a YAML/JSON posting feed used by the scheduler.
	FeedPath string `koanf:"feed_path"`

	// QueueSize bounds the in-memory batch queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ranking workers.
	WorkerCount int `koanf:"worker_count"`
	// MaxRecommendations caps GET /recommendations?limit.
	MaxRecommendations int `koanf:"max_recommendations"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`
	// MetricsRefreshInterval is how often gauge metrics are refreshed, e.g. "10s".
	MetricsRefreshInterval time.Duration `koanf:"metrics_refresh_interval"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		Storage:            StorageSQLite,
		SQLitePath:         "scout.db",
		TopK:               20,
		FingerprintPrefix:  200,
		LearningRate:       1.0,
		Temperature:        4.0,
		NeutralScore:       50,
		MinDisplayScore:    0,
		DiscoverySchedule:  "@every 10m",
		AutoDiscovery:      false,
		QueueSize:          1_000,
		WorkerCount:        runtime.NumCPU(),
		MaxRecommendations: 100,

		MetricsEnabled:         true,
		MetricsRefreshInterval: 10 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	case c.FingerprintPrefix < 1:
		return fmt.Errorf("%w: fingerprint_prefix must be positive", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive", ErrInvalidConfig)
	case c.Temperature <= 0:
		return fmt.Errorf("%w: temperature must be positive", ErrInvalidConfig)
	case c.NeutralScore <= 0 || c.NeutralScore >= 100:
		return fmt.Errorf("%w: neutral_score must be within (0, 100)", ErrInvalidConfig)
	case c.MinDisplayScore < 0 || c.MinDisplayScore > 100:
		return fmt.Errorf("%w: min_display_score must be within [0, 100]", ErrInvalidConfig)
	case c.MaxRecommendations < 1:
		return fmt.Errorf("%w: max_recommendations must be positive", ErrInvalidConfig)
	case c.MetricsRefreshInterval <= 0:
		return fmt.Errorf("%w: metrics_refresh_interval must be positive", ErrInvalidConfig)
	}

	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must be set for sqlite storage", ErrInvalidConfig)
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("%w: postgres_url must be set for postgres storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	}

	if c.AutoDiscovery {
		if c.FeedPath == "" {
			return fmt.Errorf("%w: feed_path must be set when auto_discovery is on", ErrInvalidConfig)
		}
		if _, err := cron.ParseStandard(c.DiscoverySchedule); err != nil {
			return fmt.Errorf("%w: discovery_schedule: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}
