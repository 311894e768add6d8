// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/okian/tradelink/internal/adapters/http/swagger"
	"github.com/okian/tradelink/internal/adapters/repository"
	"github.com/okian/tradelink/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider
	RecommendDependencies
	ConsistencyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	recommendHandler   *RecommendHandler
	consistencyHandler *ConsistencyHandler
	logger             logger.Logger

	corsOrigins        []string
	rateLimitPerMinute int
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the limit and minScore used when a query omits them,
// and the largest limit accepted.
func WithDefaults(limit int, minScore float64, maxLimit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.recommendHandler.defaultLimit = limit
		}
		if minScore >= 0 && minScore <= 1 {
			s.recommendHandler.defaultMinScore = minScore
		}
		if maxLimit > 0 {
			s.recommendHandler.maxLimit = maxLimit
		}
	}
}

// WithCORS allows browser calls from origins. No origins disables CORS.
func WithCORS(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRateLimit caps recommendation calls per client IP and minute.
// Zero disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.rateLimitPerMinute = perMinute
		}
	}
}

// WithStatsSection nests p's stats under name in the /stats response.
func WithStatsSection(name string, p StatsProvider) Option {
	return func(s *Server) {
		if name != "" && p != nil {
			s.statsHandler.sections[name] = p
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		recommendHandler:   NewRecommendHandler(deps),
		consistencyHandler: NewConsistencyHandler(deps),
		logger:             logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recommendHandler.logger = s.logger
	return s
}

// Routes returns the router with every endpoint and middleware attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, MetricsMiddleware, AccessLog(s.logger))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         86400,
		}))
	}

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/providers/{providerID}/consistency", s.consistencyHandler.HandleConsistency)
	r.Group(func(r chi.Router) {
		if s.rateLimitPerMinute > 0 {
			r.Use(httprate.Limit(s.rateLimitPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
				}),
			))
		}
		r.Get("/recommendations/workers", s.recommendHandler.HandleWorkers)
		r.Get("/recommendations/requests", s.recommendHandler.HandleRequests)
	})
	swagger.Register(r)

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps a service failure to 404 or 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
