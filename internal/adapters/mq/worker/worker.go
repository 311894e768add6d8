// Package worker runs consistency checks for queued audit jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tradelink/internal/adapters/mq/queue"
	service "github.com/okian/tradelink/internal/app"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Checker resolves and validates one provider's skill data.
type Checker interface {
	CheckProviderConsistency(ctx context.Context, providerID string) (service.ConsistencyReport, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Result is the outcome of one processed job.
type Result struct {
	Job    queue.Job
	Report service.ConsistencyReport
	Err    error
}

// Worker processes audit jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for an in-process queue.
type InMemoryWorker struct {
	queue   Queue
	checker Checker
	name    string
	observe func(Result)

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, checker Checker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		checker:  checker,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Discard(),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// process checks a single provider and records the outcome.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	start := time.Now()
	rep, err := w.checker.CheckProviderConsistency(ctx, job.ProviderID)
	latency := float64(time.Since(start).Milliseconds())

	switch {
	case err != nil:
		metrics.RecordAuditCheck(metrics.AuditError, latency)
		w.logger.Error(ctx, "consistency check failed",
			logger.String("providerID", job.ProviderID),
			logger.String("runID", job.RunID),
			logger.Error(err),
		)
	case !rep.Consistent:
		metrics.RecordAuditCheck(metrics.AuditViolation, latency)
		metrics.RecordConsistencyViolation(rep.Rule)
		w.logger.Warn(ctx, "skill data inconsistent",
			logger.String("providerID", job.ProviderID),
			logger.String("runID", job.RunID),
			logger.String("rule", rep.Rule),
			logger.String("detail", rep.Detail),
		)
	default:
		metrics.RecordAuditCheck(metrics.AuditConsistent, latency)
	}

	if w.observe != nil {
		w.observe(Result{Job: job, Report: rep, Err: err})
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A workerCount below 1 uses twice the
// CPU count. opts are applied to every worker.
func NewPool(workerCount int, q Queue, checker Checker, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Discard(),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("audit-worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, checker, wopts...)
		next := w.observe
		w.observe = func(r Result) {
			pool.processed.Add(1)
			if next != nil {
				next(r)
			}
		}
		pool.workers[i] = w
		if i == 0 {
			pool.logger = w.logger
		}
	}

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns how many jobs the pool has checked.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateAuditWorkers(len(p.workers))
}

// Shutdown closes the queue, lets workers drain what is left and waits for
// them. Workers still busy when ctx or the pool timeout expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.stop()
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateAuditWorkers(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
