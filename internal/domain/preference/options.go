package preference

import (
	"time"

	"github.com/okian/scout/pkg/logger"
)

// Defaults for the scoring transform and the update rule.
const (
	DefaultLearningRate = 1.0
	DefaultTemperature  = 4.0
	DefaultNeutralScore = 50.0
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithLearningRate sets the base step applied by a first decision on an
// unseen feature.
func WithLearningRate(lr float64) Option {
	return func(m *Model) { m.learningRate = lr }
}

// WithTemperature sets how quickly the raw sum saturates. Larger values
// flatten the curve.
func WithTemperature(t float64) Option {
	return func(m *Model) { m.temperature = t }
}

// WithNeutralScore sets the score returned when nothing has been learned.
// It must lie strictly between 0 and 100.
func WithNeutralScore(s float64) Option {
	return func(m *Model) { m.neutral = s }
}

// WithClock overrides the time source used to stamp decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides how decision ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(m *Model) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the model.
func WithLogger(l logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}
