// Package audit periodically re-checks every provider's skill data.
//
// A cron entry lists providers and enqueues one job per provider; the worker
// pool performs the checks and records violations.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/tradelink/internal/adapters/mq/queue"
	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// ProviderLister lists the users whose skill data is audited.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]model.Provider, error)
}

// Enqueuer accepts audit jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j queue.Job) error
}

// Summary describes one enqueued audit cycle. Pending counts providers
// skipped because an earlier cycle's job is still queued.
type Summary struct {
	RunID    string
	Started  time.Time
	Queued   int
	Pending  int
	Rejected int
}

// Scheduler wraps robfig/cron and owns the audit cycle.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	lister     ProviderLister
	jobs       Enqueuer
	runOnStart bool
	now        func() time.Time
	logger     logger.Logger

	mu   sync.Mutex
	last Summary
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron spec such as "@every 1h" or "0 3 * * *".
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}
	return sched, nil
}

// New creates a Scheduler that runs on spec.
func New(spec string, lister ProviderLister, jobs Enqueuer, opts ...Option) (*Scheduler, error) {
	if _, err := ParseSchedule(spec); err != nil {
		return nil, err
	}
	s := &Scheduler{
		spec:   spec,
		lister: lister,
		jobs:   jobs,
		now:    time.Now,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger{l: s.logger}),
		cron.WithChain(cron.Recover(cronLogger{l: s.logger})),
	)
	return s, nil
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info(ctx, "audit scheduler started", logger.String("schedule", s.spec))

	if s.runOnStart {
		go s.run(ctx)
	}
	return nil
}

// Stop stops the scheduler and waits for a running cycle or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "audit scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop audit scheduler: %w", ctx.Err())
	}
}

// Last returns the summary of the most recent cycle.
func (s *Scheduler) Last() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunOnce lists providers and enqueues one job per provider. Jobs rejected by
// a full queue are counted and skipped; the next cycle picks them up.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Started: s.now()}

	providers, err := s.lister.ListProviders(ctx)
	if err != nil {
		metrics.RecordStorageError("list_providers")
		return sum, fmt.Errorf("%w: %w", ErrListProviders, err)
	}

	for _, p := range providers {
		err := s.jobs.Enqueue(ctx, queue.Job{ProviderID: p.ID, RunID: sum.RunID, EnqueuedAt: sum.Started})
		if errors.Is(err, queue.ErrDuplicate) {
			sum.Pending++
			continue
		}
		if err != nil {
			sum.Rejected++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		sum.Queued++
	}

	metrics.RecordConsistencyAudit()
	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()
	return sum, nil
}

func (s *Scheduler) run(ctx context.Context) {
	sum, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error(ctx, "audit cycle failed", logger.Error(err))
		return
	}
	fields := []logger.Field{
		logger.String("runID", sum.RunID),
		logger.Int("queued", sum.Queued),
		logger.Int("pending", sum.Pending),
	}
	if sum.Rejected > 0 {
		s.logger.Warn(ctx, "audit cycle queued partially", append(fields, logger.Int("rejected", sum.Rejected))...)
		return
	}
	s.logger.Info(ctx, "audit cycle queued", fields...)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), "cron: "+msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), "cron: "+msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
