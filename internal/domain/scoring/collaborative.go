package scoring

import (
	"strings"

	"github.com/okian/tradelink/internal/domain/model"
)

// History factor weights.
const (
	WeightSuccessRate  = 0.40
	WeightPopularity   = 0.30
	WeightRequesterFit = 0.30
)

// Neutral is the collaborative score used when there is no history at all.
const Neutral = 0.5

// Request-direction affinity values.
const (
	AffinityMatch   = 0.8
	AffinityNoMatch = 0.5
)

// HistoryBreakdown holds the individual collaborative factors.
type HistoryBreakdown struct {
	SuccessRate  Factor
	Popularity   Factor
	RequesterFit Factor
}

// Score folds the present factors, defaulting to Neutral.
func (b HistoryBreakdown) Score() float64 {
	return weightedAverage(Neutral, b.SuccessRate, b.Popularity, b.RequesterFit)
}

// ScoreCollaborative returns the history-based score of p for req.
// similar holds other requests of the same category; history holds the
// Completed/InProgress bookings loaded for the call.
func ScoreCollaborative(p model.Provider, req model.ServiceRequest, similar []model.ServiceRequest, history []model.Booking) float64 {
	return Collaborative(p, req, similar, history).Score()
}

// Collaborative computes every history factor. Popularity and requester fit
// describe the category and the requester, not the candidate provider.
func Collaborative(p model.Provider, req model.ServiceRequest, similar []model.ServiceRequest, history []model.Booking) HistoryBreakdown {
	b := HistoryBreakdown{
		SuccessRate:  Factor{Weight: WeightSuccessRate},
		Popularity:   Factor{Weight: WeightPopularity},
		RequesterFit: Factor{Weight: WeightRequesterFit},
	}

	var completed, inCategory int
	for _, bk := range history {
		if bk.ProviderID != p.ID || bk.Status != model.BookingCompleted {
			continue
		}
		completed++
		if sameCategory(bk.ServiceCategory, req.ServiceCategory) {
			inCategory++
		}
	}
	if completed > 0 {
		b.SuccessRate.Present = true
		b.SuccessRate.Value = float64(inCategory) / float64(completed)
	}

	var peers, fulfilled int
	for _, r := range similar {
		if r.ID == req.ID {
			continue
		}
		peers++
		if r.Status == model.RequestCompleted || r.Status == model.RequestInProgress {
			fulfilled++
		}
	}
	if peers > 0 {
		b.Popularity.Present = true
		b.Popularity.Value = float64(fulfilled) / float64(peers)
	}

	var asked, succeeded int
	for _, bk := range history {
		if req.RequesterID == "" || bk.RequesterID != req.RequesterID {
			continue
		}
		asked++
		if bk.Status == model.BookingCompleted {
			succeeded++
		}
	}
	if asked > 0 {
		b.RequesterFit.Present = true
		b.RequesterFit.Value = float64(succeeded) / float64(asked)
	}
	return b
}

// ScoreRequestAffinity is the role-reversed collaborative score used when
// ranking requests for a provider: AffinityMatch when the provider already
// completed a booking in category, AffinityNoMatch otherwise.
func ScoreRequestAffinity(providerID, category string, history []model.Booking) float64 {
	for _, bk := range history {
		if bk.ProviderID == providerID && bk.Status == model.BookingCompleted && sameCategory(bk.ServiceCategory, category) {
			return AffinityMatch
		}
	}
	return AffinityNoMatch
}

func sameCategory(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
