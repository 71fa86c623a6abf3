package dedupe

import "github.com/okian/scout/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithPrefixRunes sets how many description runes take part in the digest.
// Non-positive values are ignored.
func WithPrefixRunes(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.prefixRunes = n
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
