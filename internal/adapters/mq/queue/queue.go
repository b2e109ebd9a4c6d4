// Package queue carries snapshot rebuild jobs from the grade-update path to
// the background workers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/gradestats/internal/domain/dedupe"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/metrics"
)

const defaultQueueCapacity = 1024

// RebuildJob asks for the snapshot of one cohort slice to be rebuilt.
type RebuildJob struct {
	Key        model.SelectionKey
	Reason     string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. A job whose key is already waiting is merged
	// into the waiting one and reported as accepted.
	Enqueue(ctx context.Context, job RebuildJob) error
	// Dequeue returns a channel of jobs, closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan RebuildJob
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan RebuildJob
	capacity int
	pending  dedupe.Deduper

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.pending == nil {
		q.pending = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(q.capacity))
	}
	q.jobs = make(chan RebuildJob, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job RebuildJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	id := job.Key.String()
	if q.pending.SeenAndRecord(ctx, id) {
		metrics.RecordQueueCoalesced()
		return nil
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-ctx.Done():
		q.pending.Unrecord(ctx, id)
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	default:
		q.pending.Unrecord(ctx, id)
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue implements Queue. The pending mark of a job is cleared as soon
// as it leaves the buffer, so an update arriving while it runs schedules
// a fresh rebuild.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan RebuildJob {
	out := make(chan RebuildJob)
	go func() {
		defer close(out)
		for job := range q.jobs {
			q.pending.Unrecord(ctx, job.Key.String())
			select {
			case out <- job:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of waiting jobs.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting jobs and closes the dequeue channels once drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
