// Package queue holds provider checks waiting for an audit worker.
//
// The in-memory implementation is a bounded channel. Enqueue never blocks: a
// full or closed queue rejects the job and the caller decides what to do.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tradelink/internal/domain/dedupe"
	"github.com/okian/tradelink/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Job asks a worker to audit one provider's skill data.
type Job struct {
	ProviderID string
	// RunID groups the jobs enqueued by one audit cycle.
	RunID      string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull, ErrClosed or ErrDuplicate when
	// the job was not accepted.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel of jobs, closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Already queued jobs can still be drained.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	pending  dedupe.Deduper

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateAuditQueue(0, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordAuditEnqueueRejected("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordAuditEnqueueRejected("context_cancelled")
		return err
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}
	if q.pending != nil && q.pending.SeenAndRecord(ctx, j.ProviderID) {
		metrics.RecordAuditEnqueueRejected("duplicate")
		return ErrDuplicate
	}

	select {
	case q.jobs <- j:
		metrics.UpdateAuditQueue(len(q.jobs), q.capacity)
		return nil
	default:
		if q.pending != nil {
			q.pending.Unrecord(ctx, j.ProviderID)
		}
		metrics.RecordAuditEnqueueRejected("queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				select {
				case out <- j:
					if q.pending != nil {
						q.pending.Unrecord(ctx, j.ProviderID)
					}
					metrics.UpdateAuditQueue(len(q.jobs), q.capacity)
				case <-ctx.Done():
					// The job is dropped; let the next cycle queue it again.
					if q.pending != nil {
						q.pending.Unrecord(ctx, j.ProviderID)
					}
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.jobs)
}

// Close gracefully shuts down the queue.
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

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
