package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/tradelink/internal/domain/model"
)

// MemoryStore is a map-backed Store for development and tests. Reads return
// copies; insertion order is the listing order.
type MemoryStore struct {
	mu sync.RWMutex

	skills    map[string]model.Skill
	providers map[string]model.Provider
	requests  map[string]model.ServiceRequest
	bookings  map[string]model.Booking

	providerOrder []string
	requestOrder  []string
	bookingOrder  []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		skills:    make(map[string]model.Skill),
		providers: make(map[string]model.Provider),
		requests:  make(map[string]model.ServiceRequest),
		bookings:  make(map[string]model.Booking),
	}
}

// PutSkill adds or replaces a catalog skill.
func (s *MemoryStore) PutSkill(sk model.Skill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[sk.ID] = sk
}

// PutProvider adds or replaces a user. Structured skills are stored as raw ids.
func (s *MemoryStore) PutProvider(p model.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p.Clone()
	for i, e := range stored.SkillsWithService {
		stored.SkillsWithService[i].Skill = model.UnresolvedSkill(e.Skill.ID())
	}
	if _, ok := s.providers[p.ID]; !ok {
		s.providerOrder = append(s.providerOrder, p.ID)
	}
	s.providers[p.ID] = stored
}

// DeleteProvider removes a user.
func (s *MemoryStore) DeleteProvider(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providers, id)
	s.providerOrder = slices.DeleteFunc(s.providerOrder, func(v string) bool { return v == id })
}

// PutRequest adds or replaces a service request.
func (s *MemoryStore) PutRequest(r model.ServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		s.requestOrder = append(s.requestOrder, r.ID)
	}
	r.RequiredSkills = append([]string(nil), r.RequiredSkills...)
	s.requests[r.ID] = r
}

// PutBooking adds or replaces a booking. The category is derived on read.
func (s *MemoryStore) PutBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		s.bookingOrder = append(s.bookingOrder, b.ID)
	}
	b.ServiceCategory = ""
	s.bookings[b.ID] = b
}

// GetProvider implements Reader.
func (s *MemoryStore) GetProvider(_ context.Context, id string) (model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return model.Provider{}, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// GetRequest implements Reader.
func (s *MemoryStore) GetRequest(_ context.Context, id string) (model.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.ServiceRequest{}, fmt.Errorf("service request %s: %w", id, ErrNotFound)
	}
	return copyRequest(r), nil
}

// ListVerifiedProviders implements Reader.
func (s *MemoryStore) ListVerifiedProviders(_ context.Context, includeUnavailable bool) ([]model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Provider, 0, len(s.providerOrder))
	for _, id := range s.providerOrder {
		p := s.providers[id]
		if !p.Verified || p.Role != model.RoleServiceProvider {
			continue
		}
		if !includeUnavailable && p.Availability == model.AvailabilityNotAvailable {
			continue
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

// TopRatedProviders implements Reader.
func (s *MemoryStore) TopRatedProviders(ctx context.Context, limit int) ([]model.Provider, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("top rated %d: %w", limit, ErrInvalidLimit)
	}
	all, err := s.ListVerifiedProviders(ctx, true)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(all, func(a, b model.Provider) int {
		ar, br := a.AverageRating, b.AverageRating
		switch {
		case ar == nil && br == nil:
			return 0
		case ar == nil:
			return 1
		case br == nil:
			return -1
		case *ar > *br:
			return -1
		case *ar < *br:
			return 1
		}
		return 0
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListBookings implements Reader.
func (s *MemoryStore) ListBookings(_ context.Context, statuses []model.BookingStatus) ([]model.Booking, error) {
	return s.bookingsWhere(func(b model.Booking) bool { return slices.Contains(statuses, b.Status) }), nil
}

// ListProviderBookings implements Reader.
func (s *MemoryStore) ListProviderBookings(_ context.Context, providerID string, statuses []model.BookingStatus) ([]model.Booking, error) {
	return s.bookingsWhere(func(b model.Booking) bool {
		return b.ProviderID == providerID && slices.Contains(statuses, b.Status)
	}), nil
}

func (s *MemoryStore) bookingsWhere(keep func(model.Booking) bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, id := range s.bookingOrder {
		b := s.bookings[id]
		if !keep(b) {
			continue
		}
		if r, ok := s.requests[b.ServiceRequestID]; ok {
			b.ServiceCategory = r.ServiceCategory
		}
		out = append(out, b)
	}
	return out
}

// ListRequestsByCategory implements Reader.
func (s *MemoryStore) ListRequestsByCategory(_ context.Context, category, excludeID string, limit int) ([]model.ServiceRequest, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("requests by category %d: %w", limit, ErrInvalidLimit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ServiceRequest, 0)
	for _, id := range s.requestOrder {
		r := s.requests[id]
		if r.ID == excludeID || !strings.EqualFold(r.ServiceCategory, category) {
			continue
		}
		out = append(out, copyRequest(r))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListOpenRequests implements Reader.
func (s *MemoryStore) ListOpenRequests(_ context.Context, now time.Time, limit int) ([]model.ServiceRequest, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("open requests %d: %w", limit, ErrInvalidLimit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ServiceRequest, 0)
	for _, id := range s.requestOrder {
		if r := s.requests[id]; r.IsOpenAt(now) {
			out = append(out, copyRequest(r))
		}
	}
	slices.SortStableFunc(out, func(a, b model.ServiceRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListProviders implements SkillStore.
func (s *MemoryStore) ListProviders(_ context.Context) ([]model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Provider, 0, len(s.providerOrder))
	for _, id := range s.providerOrder {
		out = append(out, s.providers[id].Clone())
	}
	return out, nil
}

// SaveProviderSkills implements SkillStore.
func (s *MemoryStore) SaveProviderSkills(_ context.Context, p model.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.providers[p.ID]
	if !ok {
		return fmt.Errorf("provider %s: %w", p.ID, ErrNotFound)
	}
	upd := p.Clone()
	cur.Skills = upd.Skills
	cur.ServiceTypes = upd.ServiceTypes
	cur.SkillsWithService = upd.SkillsWithService
	for i, e := range cur.SkillsWithService {
		cur.SkillsWithService[i].Skill = model.UnresolvedSkill(e.Skill.ID())
	}
	s.providers[p.ID] = cur
	return nil
}

// Lookup implements SkillStore.
func (s *MemoryStore) Lookup(_ context.Context, ids []string) (map[string]model.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Skill, len(ids))
	for _, id := range ids {
		if sk, ok := s.skills[id]; ok {
			out[id] = sk
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func copyRequest(r model.ServiceRequest) model.ServiceRequest {
	r.RequiredSkills = append([]string(nil), r.RequiredSkills...)
	return r
}
