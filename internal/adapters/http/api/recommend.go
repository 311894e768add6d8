package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tradelink/internal/adapters/repository"
	service "github.com/okian/tradelink/internal/app"
	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/pkg/logger"
	"github.com/okian/tradelink/pkg/metrics"
)

// RecommendDependencies defines the recommendation operations the handler needs.
type RecommendDependencies interface {
	RecommendWorkersForRequestID(ctx context.Context, requestID string, opts service.WorkerOptions) ([]model.ScoredCandidate[model.Provider], error)
	RecommendRequestsForProviderID(ctx context.Context, providerID string, opts service.RequestOptions) ([]model.ScoredCandidate[model.ServiceRequest], error)
	TopRatedProviders(ctx context.Context, limit int) ([]model.Provider, error)
	OpenRequests(ctx context.Context, limit int) ([]model.ServiceRequest, error)
}

// RecommendHandler serves both recommendation directions.
type RecommendHandler struct {
	deps            RecommendDependencies
	defaultLimit    int
	defaultMinScore float64
	maxLimit        int
	logger          logger.Logger
}

// NewRecommendHandler creates a handler with limit 10, minScore 0.3 and a
// ceiling of 100.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{
		deps:            deps,
		defaultLimit:    service.DefaultLimit,
		defaultMinScore: service.DefaultMinScore,
		maxLimit:        100,
		logger:          logger.Discard(),
	}
}

// HandleWorkers handles GET /recommendations/workers. Without requestId it
// returns top-rated providers unscored.
func (h *RecommendHandler) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	q, err := parseWorkersQuery(r.URL.Query(), h.defaultLimit, h.defaultMinScore)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if q.Limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: max %d", ErrLimitExceeded, h.maxLimit))
		return
	}

	if q.RequestID == "" {
		ps, err := h.deps.TopRatedProviders(r.Context(), q.Limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views := make([]providerView, len(ps))
		for i, p := range ps {
			views[i] = toProviderView(p)
		}
		writeJSON(w, http.StatusOK, workersResponse{Source: sourceTopRated, Providers: views})
		return
	}

	ranked, err := h.deps.RecommendWorkersForRequestID(r.Context(), q.RequestID, service.WorkerOptions{
		Limit:              q.Limit,
		MinScore:           q.MinScore,
		IncludeUnavailable: q.IncludeUnavailable,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workersResponse{Source: sourceRecommended, Providers: scoredProviders(ranked)})
}

// HandleRequests handles GET /recommendations/requests. A recommender
// failure other than an unknown provider degrades to the plain open feed.
func (h *RecommendHandler) HandleRequests(w http.ResponseWriter, r *http.Request) {
	q, err := parseRequestsQuery(r.URL.Query(), h.defaultLimit, h.defaultMinScore)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if q.Limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: max %d", ErrLimitExceeded, h.maxLimit))
		return
	}

	ranked, err := h.deps.RecommendRequestsForProviderID(r.Context(), q.ProviderID, service.RequestOptions{
		Limit:    q.Limit,
		MinScore: q.MinScore,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, requestsResponse{Source: sourceRecommended, Requests: scoredRequests(ranked)})
		return
	case errors.Is(err, repository.ErrNotFound):
		writeServiceError(w, err)
		return
	}

	h.logger.Warn(r.Context(), "request recommendations failed, serving open feed",
		logger.String("providerID", q.ProviderID),
		logger.Error(err),
	)
	open, ferr := h.deps.OpenRequests(r.Context(), q.Limit)
	if ferr != nil {
		writeServiceError(w, ferr)
		return
	}
	metrics.RecordRecommendation(metrics.DirectionRequests, metrics.OutcomeFallback, 0)
	views := make([]requestView, len(open))
	for i, req := range open {
		views[i] = toRequestView(req)
	}
	writeJSON(w, http.StatusOK, requestsResponse{Source: sourceOpen, Requests: views})
}
