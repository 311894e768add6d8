package api

import (
	"net/http"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsFunc adapts a plain function to StatsProvider.
type StatsFunc func() map[string]interface{}

// GetStats calls f.
func (f StatsFunc) GetStats() map[string]interface{} { return f() }

// StatsHandler serves the service stats plus any named sections, such as
// the consistency audit, nested under their name.
type StatsHandler struct {
	statsProvider StatsProvider
	sections      map[string]StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, sections: map[string]StatsProvider{}}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	stats := make(map[string]interface{})
	for k, v := range h.statsProvider.GetStats() {
		stats[k] = v
	}
	for name, p := range h.sections {
		stats[name] = p.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}
