package api

import (
	"time"

	"github.com/okian/tradelink/internal/domain/model"
)

type providerView struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	Skills             []string `json:"skills"`
	ServiceTypes       []string `json:"serviceTypes"`
	AverageRating      *float64 `json:"averageRating,omitempty"`
	TotalReviews       *int     `json:"totalReviews,omitempty"`
	YearsExperience    *int     `json:"yearsExperience,omitempty"`
	TotalJobsCompleted *int     `json:"totalJobsCompleted,omitempty"`
	Availability       string   `json:"availability"`
	Verified           bool     `json:"verified"`
}

type scoredProviderView struct {
	providerView
	RecommendationScore  float64 `json:"recommendationScore"`
	ContentBasedScore    float64 `json:"contentBasedScore"`
	CollaborativeScore   float64 `json:"collaborativeScore"`
	RecommendationReason string  `json:"recommendationReason"`
}

type requestView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ServiceCategory string    `json:"serviceCategory"`
	RequiredSkills  []string  `json:"requiredSkills"`
	Status          string    `json:"status"`
	RequesterID     string    `json:"requesterId"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

type scoredRequestView struct {
	requestView
	RecommendationScore float64 `json:"recommendationScore"`
	MatchReason         string  `json:"matchReason"`
}

// Response sources.
const (
	sourceRecommended = "recommended"
	sourceTopRated    = "top_rated"
	sourceOpen        = "open"
)

type workersResponse struct {
	Source    string `json:"source"`
	Providers any    `json:"providers"`
}

type requestsResponse struct {
	Source   string `json:"source"`
	Requests any    `json:"requests"`
}

func toProviderView(p model.Provider) providerView {
	return providerView{
		ID:                 p.ID,
		Name:               p.Name,
		Role:               string(p.Role),
		Skills:             nonNil(p.Skills),
		ServiceTypes:       nonNil(p.ServiceTypes),
		AverageRating:      p.AverageRating,
		TotalReviews:       p.TotalReviews,
		YearsExperience:    p.YearsExperience,
		TotalJobsCompleted: p.TotalJobsCompleted,
		Availability:       string(p.Availability),
		Verified:           p.Verified,
	}
}

func toRequestView(r model.ServiceRequest) requestView {
	return requestView{
		ID:              r.ID,
		Title:           r.Title,
		ServiceCategory: r.ServiceCategory,
		RequiredSkills:  nonNil(r.RequiredSkills),
		Status:          string(r.Status),
		RequesterID:     r.RequesterID,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
	}
}

func scoredProviders(cs []model.ScoredCandidate[model.Provider]) []scoredProviderView {
	out := make([]scoredProviderView, len(cs))
	for i, c := range cs {
		out[i] = scoredProviderView{
			providerView:         toProviderView(c.Entity),
			RecommendationScore:  c.HybridScore,
			ContentBasedScore:    c.ContentScore,
			CollaborativeScore:   c.CollaborativeScore,
			RecommendationReason: c.Reason,
		}
	}
	return out
}

func scoredRequests(cs []model.ScoredCandidate[model.ServiceRequest]) []scoredRequestView {
	out := make([]scoredRequestView, len(cs))
	for i, c := range cs {
		out[i] = scoredRequestView{
			requestView:         toRequestView(c.Entity),
			RecommendationScore: c.HybridScore,
			MatchReason:         c.Reason,
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
