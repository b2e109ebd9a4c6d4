// Package dedupe coalesces work items that are already pending.
package dedupe

import (
	"context"
	"sync"
)

// Deduper tracks keys that have a job waiting to run.
type Deduper interface {
	// SeenAndRecord reports whether key is already pending and marks it
	// pending when it is not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord clears the pending mark of key. Workers call it once the job
	// has been taken off the queue, producers call it when enqueueing failed.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]struct{}
	maxSize int
}

// NewInMemoryDeduper creates an in-memory Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pending = make(map[string]struct{})
	return d
}

// SeenAndRecord implements Deduper. Once the tracker is full new keys are
// let through untracked, so a duplicate job is possible but never lost.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.pending) >= d.maxSize {
		return false
	}
	d.pending[key] = struct{}{}
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}

// Size returns the number of pending keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.pending))
}
