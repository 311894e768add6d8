package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/tradelink/internal/app"
)

// ConsistencyDependencies defines the check the handler runs.
type ConsistencyDependencies interface {
	CheckProviderConsistency(ctx context.Context, providerID string) (service.ConsistencyReport, error)
}

// ConsistencyHandler handles skill consistency reports.
type ConsistencyHandler struct {
	deps ConsistencyDependencies
}

// NewConsistencyHandler creates a new consistency handler.
func NewConsistencyHandler(deps ConsistencyDependencies) *ConsistencyHandler {
	return &ConsistencyHandler{deps: deps}
}

type consistencyResponse struct {
	ProviderID string `json:"providerId"`
	Consistent bool   `json:"consistent"`
	Rule       string `json:"rule,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// HandleConsistency handles GET /providers/{providerID}/consistency.
func (h *ConsistencyHandler) HandleConsistency(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")
	rep, err := h.deps.CheckProviderConsistency(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consistencyResponse{
		ProviderID: rep.ProviderID,
		Consistent: rep.Consistent,
		Rule:       rep.Rule,
		Detail:     rep.Detail,
	})
}
