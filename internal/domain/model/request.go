package model

import (
	"strings"
	"time"
)

// RequestStatus tracks a service request through its lifecycle.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "Open"
	RequestOffered    RequestStatus = "Offered"
	RequestInProgress RequestStatus = "In Progress"
	RequestCompleted  RequestStatus = "Completed"
	RequestCancelled  RequestStatus = "Cancelled"
)

// ParseRequestStatus converts a raw status label.
func ParseRequestStatus(s string) (RequestStatus, error) {
	return parseLabel("request status", s,
		RequestOpen, RequestOffered, RequestInProgress, RequestCompleted, RequestCancelled)
}

// ServiceRequest is a job posted by a community member.
type ServiceRequest struct {
	ID              string
	Title           string
	ServiceCategory string
	// RequiredSkills lists extra skill terms beyond the category. Usually empty.
	RequiredSkills []string
	Status         RequestStatus
	RequesterID    string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// IsOpenAt reports whether the request still accepts new offers at now.
func (r ServiceRequest) IsOpenAt(now time.Time) bool {
	return r.Status == RequestOpen && r.ExpiresAt.After(now)
}

// Terms returns the de-duplicated, non-blank skill terms a provider has to
// cover: the category first, then the required skills.
func (r ServiceRequest) Terms() []string {
	seen := make(map[string]struct{}, len(r.RequiredSkills)+1)
	terms := make([]string, 0, len(r.RequiredSkills)+1)
	for _, t := range append([]string{r.ServiceCategory}, r.RequiredSkills...) {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}
