// Package scoring computes the content-based and history-based match scores
// between a provider and a service request. All functions are pure.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/tradelink/internal/domain/model"
)

// Content factor weights. They are part of the ranking contract.
const (
	WeightSkill      = 0.40
	WeightRating     = 0.25
	WeightReviews    = 0.15
	WeightExperience = 0.10
	WeightJobs       = 0.10
)

// Saturation points for the numeric content factors.
const (
	maxRating           = 5.0
	reviewSaturation    = 10
	experienceSatYears  = 5.0
	jobsSaturationCount = 20.0
)

// Factor is one normalized signal. Present is false when the source data is
// missing; such factors are left out of the weighted average entirely.
type Factor struct {
	Value   float64
	Weight  float64
	Present bool
}

// ContentBreakdown holds the individual content factors for one pair.
type ContentBreakdown struct {
	Skill      Factor
	Rating     Factor
	Reviews    Factor
	Experience Factor
	Jobs       Factor
}

// Score folds the present factors into a weighted average in [0,1]. With no
// factor present the score is 0.
func (b ContentBreakdown) Score() float64 {
	return weightedAverage(0, b.Skill, b.Rating, b.Reviews, b.Experience, b.Jobs)
}

// ScoreContent returns the content-based match score of p for req.
func ScoreContent(p model.Provider, req model.ServiceRequest) float64 {
	return Content(p, req).Score()
}

// Content computes every content factor for p against req.
func Content(p model.Provider, req model.ServiceRequest) ContentBreakdown {
	b := ContentBreakdown{
		Skill:      Factor{Weight: WeightSkill},
		Rating:     Factor{Weight: WeightRating},
		Reviews:    Factor{Weight: WeightReviews},
		Experience: Factor{Weight: WeightExperience},
		Jobs:       Factor{Weight: WeightJobs},
	}

	if terms := req.Terms(); len(p.Skills) > 0 && len(terms) > 0 {
		b.Skill.Present = true
		b.Skill.Value = skillCoverage(p.Skills, terms)
	}
	if p.AverageRating != nil {
		b.Rating.Present = true
		b.Rating.Value = clamp01(*p.AverageRating / maxRating)
	}
	if p.TotalReviews != nil {
		reviews := math.Max(0, float64(*p.TotalReviews))
		b.Reviews.Present = true
		b.Reviews.Value = clamp01(math.Log10(reviews+1) / math.Log10(reviewSaturation+1))
	}
	if p.YearsExperience != nil {
		b.Experience.Present = true
		b.Experience.Value = clamp01(float64(*p.YearsExperience) / experienceSatYears)
	}
	if p.TotalJobsCompleted != nil {
		b.Jobs.Present = true
		b.Jobs.Value = clamp01(float64(*p.TotalJobsCompleted) / jobsSaturationCount)
	}
	return b
}

// skillCoverage is the fraction of terms matched by at least one skill.
// The denominator is the request's terms, never the provider's skill count:
// extra skills must not lower a matching provider's score.
func skillCoverage(skills, terms []string) float64 {
	matched := 0
	for _, term := range terms {
		for _, skill := range skills {
			if SkillMatches(skill, term) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(terms))
}

// SkillMatches reports a case-insensitive substring match in either direction.
// Blank strings never match.
func SkillMatches(skill, term string) bool {
	s := strings.ToLower(strings.TrimSpace(skill))
	t := strings.ToLower(strings.TrimSpace(term))
	if s == "" || t == "" {
		return false
	}
	return strings.Contains(s, t) || strings.Contains(t, s)
}

// weightedAverage averages the present factors by weight, returning fallback
// when none is present.
func weightedAverage(fallback float64, factors ...Factor) float64 {
	var sum, weights float64
	for _, f := range factors {
		if !f.Present {
			continue
		}
		sum += f.Weight * f.Value
		weights += f.Weight
	}
	if weights == 0 {
		return fallback
	}
	return clamp01(sum / weights)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
