package model

// ScoredCandidate is one ranked recommendation. It lives for a single call.
type ScoredCandidate[T any] struct {
	Entity             T
	ContentScore       float64
	CollaborativeScore float64
	HybridScore        float64
	Reason             string
}
