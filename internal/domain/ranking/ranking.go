// Package ranking fuses content and collaborative scores into a single
// hybrid score, then filters, orders and truncates the candidate list.
package ranking

import (
	"slices"
	"strings"

	"github.com/okian/tradelink/internal/domain/model"
)

// Fusion weights.
const (
	ContentWeight       = 0.6
	CollaborativeWeight = 0.4
)

// Reason thresholds.
const (
	strongContent      = 0.7
	strongHistory      = 0.7
	excellentRating    = 4.5
	experiencedJobsMin = 20
)

// Reason clauses.
const (
	ReasonSkillMatch  = "Strong skill match"
	ReasonHighlyRated = "Highly rated by similar clients"
	ReasonExcellent   = "Excellent ratings"
	ReasonExperienced = "Experienced provider"
	ReasonDefault     = "Good overall match"
)

// Candidate is an entity with its two component scores. Rating and
// JobsCompleted describe the provider side of the pair and only feed the
// reason text.
type Candidate[T any] struct {
	Entity             T
	ContentScore       float64
	CollaborativeScore float64
	Rating             float64
	JobsCompleted      int
}

// Hybrid returns the fused score.
func Hybrid(content, collaborative float64) float64 {
	return ContentWeight*content + CollaborativeWeight*collaborative
}

// Rank fuses, drops candidates below minScore, sorts by hybrid score
// descending and keeps at most limit entries. Equal scores keep their input
// order. Every call computes a fresh slice.
func Rank[T any](candidates []Candidate[T], minScore float64, limit int) []model.ScoredCandidate[T] {
	if limit <= 0 {
		return []model.ScoredCandidate[T]{}
	}

	out := make([]model.ScoredCandidate[T], 0, len(candidates))
	for _, c := range candidates {
		h := Hybrid(c.ContentScore, c.CollaborativeScore)
		if h < minScore {
			continue
		}
		out = append(out, model.ScoredCandidate[T]{
			Entity:             c.Entity,
			ContentScore:       c.ContentScore,
			CollaborativeScore: c.CollaborativeScore,
			HybridScore:        h,
			Reason:             Reason(c),
		})
	}

	slices.SortStableFunc(out, func(a, b model.ScoredCandidate[T]) int {
		switch {
		case a.HybridScore > b.HybridScore:
			return -1
		case a.HybridScore < b.HybridScore:
			return 1
		}
		return 0
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Reason builds the human-readable justification for a candidate.
func Reason[T any](c Candidate[T]) string {
	var clauses []string
	if c.ContentScore > strongContent {
		clauses = append(clauses, ReasonSkillMatch)
	}
	if c.CollaborativeScore > strongHistory {
		clauses = append(clauses, ReasonHighlyRated)
	}
	if c.Rating >= excellentRating {
		clauses = append(clauses, ReasonExcellent)
	}
	if c.JobsCompleted > experiencedJobsMin {
		clauses = append(clauses, ReasonExperienced)
	}
	if len(clauses) == 0 {
		return ReasonDefault
	}
	return strings.Join(clauses, ", ")
}
