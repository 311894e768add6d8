package queue

import "github.com/okian/tradelink/internal/domain/dedupe"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithDeduper rejects a job whose provider is already waiting in the queue.
// A provider becomes eligible again once a worker receives its job.
func WithDeduper(d dedupe.Deduper) Option {
	return func(q *InMemoryQueue) {
		q.pending = d
	}
}
