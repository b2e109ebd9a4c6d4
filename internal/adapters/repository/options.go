package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithLocation sets the time zone used to compare snapshot days.
func WithLocation(loc *time.Location) Option {
	return func(s *MemoryStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator overrides how new snapshot ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *MemoryStore) {
		if newID != nil {
			s.newID = newID
		}
	}
}
