package matching

import "github.com/okian/scout/pkg/logger"

// DefaultCacheSize bounds the feature cache.
const DefaultCacheSize = 10000

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMinDisplayScore hides results scoring below min. They are still
// registered.
func WithMinDisplayScore(min float64) Option {
	return func(e *Engine) { e.minScore = min }
}

// WithCacheSize sets how many feature records are cached. The oldest entry is
// evicted first.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cache.limit = n
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
