package features

// DefaultTopK is the number of keywords kept per posting.
const DefaultTopK = 20

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithTopK sets how many keywords are kept. Non-positive values are ignored.
func WithTopK(k int) Option {
	return func(e *Extractor) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithAnalyzer selects a registered bleve analyzer by name.
func WithAnalyzer(name string) Option {
	return func(e *Extractor) {
		if name != "" {
			e.analyzerName = name
		}
	}
}
