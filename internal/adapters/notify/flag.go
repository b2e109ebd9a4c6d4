// Package notify sends best-effort student notifications and backs off
// while the delivery provider is rate limiting.
package notify

import (
	"sync"
	"time"
)

// Flag records that the provider is rate limiting until a given instant.
// The zero value is a cleared flag.
type Flag struct {
	mu    sync.Mutex
	until time.Time
}

// Set raises the flag until the given instant. An earlier deadline than
// the current one is ignored.
func (f *Flag) Set(until time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if until.After(f.until) {
		f.until = until
	}
}

// Active reports whether the flag is raised at now, clearing it once expired.
func (f *Flag) Active(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.until.IsZero() {
		return false
	}
	if !now.Before(f.until) {
		f.until = time.Time{}
		return false
	}
	return true
}

// Until returns the instant the flag expires; zero when cleared.
func (f *Flag) Until() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.until
}

// Clear lowers the flag.
func (f *Flag) Clear() {
	f.mu.Lock()
	f.until = time.Time{}
	f.mu.Unlock()
}
