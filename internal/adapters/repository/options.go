package repository

import "github.com/okian/scout/pkg/logger"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	logger    logger.Logger
	keyPrefix string
}

func defaultOptions(name string) options {
	return options{
		logger:    logger.Get().Named(name),
		keyPrefix: "scout:fp:",
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyPrefix sets the key prefix used by the Redis index.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}
