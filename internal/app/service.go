// Package service provides the recommendation service behind the HTTP API
// and the skill tooling.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tradelink/internal/adapters/repository"
	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/internal/domain/ranking"
	"github.com/okian/tradelink/internal/domain/scoring"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// Candidate pool bounds.
const (
	similarRequestLimit = 50
	openRequestLimit    = 100
)

// Defaults for both recommendation directions.
const (
	DefaultLimit    = 10
	DefaultMinScore = 0.3
)

// WorkerOptions tunes RecommendWorkersFor.
type WorkerOptions struct {
	Limit              int
	MinScore           float64
	IncludeUnavailable bool
}

// DefaultWorkerOptions returns limit 10, minScore 0.3, available providers only.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{Limit: DefaultLimit, MinScore: DefaultMinScore}
}

// RequestOptions tunes RecommendRequestsFor.
type RequestOptions struct {
	Limit    int
	MinScore float64
}

// DefaultRequestOptions returns limit 10, minScore 0.3.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{Limit: DefaultLimit, MinScore: DefaultMinScore}
}

// Service ranks providers for requests and requests for providers. It holds
// no per-call state and is safe for concurrent use.
type Service struct {
	store   repository.Reader
	catalog consistency.SkillCatalog

	parallelism int
	callTimeout time.Duration
	now         func() time.Time

	workerCalls  atomic.Int64
	requestCalls atomic.Int64
	failedCalls  atomic.Int64

	logger logger.Logger
}

// New constructs a Service reading from store.
func New(store repository.Reader, opts ...Option) *Service {
	s := &Service{
		store:       store,
		parallelism: runtime.NumCPU(),
		now:         time.Now,
		logger:      logger.Discard(),
	}
	if c, ok := store.(consistency.SkillCatalog); ok {
		s.catalog = c
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecommendWorkersFor ranks verified providers for req. An empty provider
// pool yields an empty result.
func (s *Service) RecommendWorkersFor(ctx context.Context, req model.ServiceRequest, opts WorkerOptions) ([]model.ScoredCandidate[model.Provider], error) {
	start := time.Now()
	s.workerCalls.Add(1)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	providers, err := s.store.ListVerifiedProviders(ctx, opts.IncludeUnavailable)
	if err != nil {
		return nil, s.fail(ctx, metrics.DirectionWorkers, "list_verified_providers", start, err)
	}
	if len(providers) == 0 {
		metrics.RecordRecommendation(metrics.DirectionWorkers, metrics.OutcomeEmpty, msSince(start))
		return []model.ScoredCandidate[model.Provider]{}, nil
	}

	var (
		history []model.Booking
		similar []model.ServiceRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if history, err = s.store.ListBookings(gctx, model.HistoryStatuses); err != nil {
			return storageError("list_bookings", err)
		}
		return nil
	})
	g.Go(func() error {
		if req.ServiceCategory == "" {
			return nil
		}
		var err error
		if similar, err = s.store.ListRequestsByCategory(gctx, req.ServiceCategory, req.ID, similarRequestLimit); err != nil {
			return storageError("list_requests_by_category", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(ctx, metrics.DirectionWorkers, "", start, err)
	}

	cands := make([]ranking.Candidate[model.Provider], len(providers))
	err = s.scoreEach(ctx, len(providers), func(i int) {
		p := providers[i]
		cands[i] = ranking.Candidate[model.Provider]{
			Entity:             p,
			ContentScore:       scoring.ScoreContent(p, req),
			CollaborativeScore: scoring.ScoreCollaborative(p, req, similar, history),
			Rating:             p.Rating(),
			JobsCompleted:      p.JobsCompleted(),
		}
	})
	if err != nil {
		return nil, s.fail(ctx, metrics.DirectionWorkers, "", start, err)
	}

	ranked := ranking.Rank(cands, opts.MinScore, opts.Limit)
	s.done(ctx, metrics.DirectionWorkers, start, len(cands), len(ranked),
		logger.String("requestID", req.ID),
		logger.Int("similar", len(similar)),
		logger.Int("history", len(history)),
	)
	return ranked, nil
}

// RecommendRequestsFor ranks open, unexpired requests for p. The history
// score is the provider's category affinity.
func (s *Service) RecommendRequestsFor(ctx context.Context, p model.Provider, opts RequestOptions) ([]model.ScoredCandidate[model.ServiceRequest], error) {
	start := time.Now()
	s.requestCalls.Add(1)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	requests, err := s.store.ListOpenRequests(ctx, s.now(), openRequestLimit)
	if err != nil {
		return nil, s.fail(ctx, metrics.DirectionRequests, "list_open_requests", start, err)
	}
	if len(requests) == 0 {
		metrics.RecordRecommendation(metrics.DirectionRequests, metrics.OutcomeEmpty, msSince(start))
		return []model.ScoredCandidate[model.ServiceRequest]{}, nil
	}

	history, err := s.store.ListProviderBookings(ctx, p.ID, model.HistoryStatuses)
	if err != nil {
		return nil, s.fail(ctx, metrics.DirectionRequests, "list_provider_bookings", start, err)
	}

	cands := make([]ranking.Candidate[model.ServiceRequest], len(requests))
	err = s.scoreEach(ctx, len(requests), func(i int) {
		r := requests[i]
		cands[i] = ranking.Candidate[model.ServiceRequest]{
			Entity:             r,
			ContentScore:       scoring.ScoreContent(p, r),
			CollaborativeScore: scoring.ScoreRequestAffinity(p.ID, r.ServiceCategory, history),
			Rating:             p.Rating(),
			JobsCompleted:      p.JobsCompleted(),
		}
	})
	if err != nil {
		return nil, s.fail(ctx, metrics.DirectionRequests, "", start, err)
	}

	ranked := ranking.Rank(cands, opts.MinScore, opts.Limit)
	s.done(ctx, metrics.DirectionRequests, start, len(cands), len(ranked),
		logger.String("providerID", p.ID),
		logger.Int("history", len(history)),
	)
	return ranked, nil
}

// RecommendWorkersForRequestID loads the request then delegates.
func (s *Service) RecommendWorkersForRequestID(ctx context.Context, requestID string, opts WorkerOptions) ([]model.ScoredCandidate[model.Provider], error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load service request: %w", err)
	}
	return s.RecommendWorkersFor(ctx, req, opts)
}

// RecommendRequestsForProviderID loads the provider then delegates.
func (s *Service) RecommendRequestsForProviderID(ctx context.Context, providerID string, opts RequestOptions) ([]model.ScoredCandidate[model.ServiceRequest], error) {
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	return s.RecommendRequestsFor(ctx, p, opts)
}

// TopRatedProviders is the unscored feed shown when no request is selected.
func (s *Service) TopRatedProviders(ctx context.Context, limit int) ([]model.Provider, error) {
	ps, err := s.store.TopRatedProviders(ctx, limit)
	if err != nil {
		return nil, storageError("top_rated_providers", err)
	}
	return ps, nil
}

// OpenRequests is the unscored feed of open, unexpired requests.
func (s *Service) OpenRequests(ctx context.Context, limit int) ([]model.ServiceRequest, error) {
	rs, err := s.store.ListOpenRequests(ctx, s.now(), limit)
	if err != nil {
		return nil, storageError("list_open_requests", err)
	}
	return rs, nil
}

// ConsistencyReport is the outcome of checking one provider's skill data.
type ConsistencyReport struct {
	ProviderID string
	Consistent bool
	Rule       string
	Detail     string
}

// CheckProviderConsistency resolves p's structured skills and validates them.
func (s *Service) CheckProviderConsistency(ctx context.Context, providerID string) (ConsistencyReport, error) {
	if s.catalog == nil {
		return ConsistencyReport{}, ErrNoCatalog
	}
	p, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return ConsistencyReport{}, fmt.Errorf("load provider: %w", err)
	}
	resolved, err := consistency.ResolveSkillRefs(ctx, p, s.catalog)
	if err != nil {
		return ConsistencyReport{}, storageError("lookup_skills", err)
	}
	rep := ConsistencyReport{ProviderID: p.ID, Consistent: true}
	if err := consistency.CheckUserSkillConsistency(resolved); err != nil {
		rep.Consistent = false
		rep.Rule = consistency.RuleOf(err)
		rep.Detail = err.Error()
	}
	return rep, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"parallelism":   s.parallelism,
		"callTimeoutMs": s.callTimeout.Milliseconds(),
		"workerCalls":   s.workerCalls.Load(),
		"requestCalls":  s.requestCalls.Load(),
		"failedCalls":   s.failedCalls.Load(),
		"catalog":       s.catalog != nil,
	}
}

// scoreEach runs score(i) for every index with bounded parallelism. Each
// call writes only its own slot so the result order is the input order.
func (s *Service) scoreEach(ctx context.Context, n int, score func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("score candidates: %w", err)
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *Service) done(ctx context.Context, direction string, start time.Time, scored, returned int, fields ...logger.Field) {
	took := time.Since(start)
	metrics.RecordRecommendation(direction, metrics.OutcomeOK, msSince(start))
	metrics.RecordCandidates(direction, scored, returned)
	fields = append(fields,
		logger.String("direction", direction),
		logger.Int("scored", scored),
		logger.Int("returned", returned),
		logger.Duration("took", took),
	)
	s.logger.Debug(ctx, "recommendations ranked", fields...)
}

func (s *Service) fail(ctx context.Context, direction, operation string, start time.Time, err error) error {
	s.failedCalls.Add(1)
	metrics.RecordRecommendation(direction, metrics.OutcomeError, msSince(start))
	var se *StorageError
	if operation != "" && !errors.As(err, &se) {
		err = storageError(operation, err)
	}
	s.logger.Warn(ctx, "recommendation failed",
		logger.String("direction", direction),
		logger.Error(err),
	)
	return err
}

// StorageError marks a failure of the storage collaborator.
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string { return e.Operation + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// storageError wraps err and counts it once per failure.
func storageError(operation string, err error) error {
	metrics.RecordStorageError(operation)
	return &StorageError{Operation: operation, Err: err}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
