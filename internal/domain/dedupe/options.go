package dedupe

// Option configures the in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of tracked keys. Non-positive means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
