package inbox

import "github.com/okian/scout/pkg/logger"

// Option configures an Inbox.
type Option func(*Inbox)

// WithMaxSize caps the number of pending recommendations. When full, the
// lowest-ranked entry is evicted. Zero means unbounded.
func WithMaxSize(n int) Option {
	return func(i *Inbox) {
		if n >= 0 {
			i.maxSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Inbox) {
		if l != nil {
			i.logger = l
		}
	}
}
