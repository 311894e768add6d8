// Package repository defines the storage collaborator the recommendation core
// reads from, with in-memory and PostgreSQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/tradelink/internal/domain/model"
)

// Reader exposes the queries the recommendation service needs. Providers are
// returned with raw (unresolved) structured skill references.
type Reader interface {
	// GetProvider returns ErrNotFound for unknown or deleted users.
	GetProvider(ctx context.Context, id string) (model.Provider, error)
	// GetRequest returns ErrNotFound for unknown requests.
	GetRequest(ctx context.Context, id string) (model.ServiceRequest, error)

	// ListVerifiedProviders returns verified service providers, skipping
	// NotAvailable ones unless includeUnavailable is set.
	ListVerifiedProviders(ctx context.Context, includeUnavailable bool) ([]model.Provider, error)
	// TopRatedProviders returns verified providers by rating, best first.
	TopRatedProviders(ctx context.Context, limit int) ([]model.Provider, error)

	// ListBookings returns bookings in any of statuses, with the linked
	// request's category filled in.
	ListBookings(ctx context.Context, statuses []model.BookingStatus) ([]model.Booking, error)
	// ListProviderBookings narrows ListBookings to one provider.
	ListProviderBookings(ctx context.Context, providerID string, statuses []model.BookingStatus) ([]model.Booking, error)

	// ListRequestsByCategory returns up to limit requests sharing category,
	// excluding excludeID.
	ListRequestsByCategory(ctx context.Context, category, excludeID string, limit int) ([]model.ServiceRequest, error)
	// ListOpenRequests returns up to limit Open requests expiring after now,
	// newest first.
	ListOpenRequests(ctx context.Context, now time.Time, limit int) ([]model.ServiceRequest, error)
}

// SkillStore is the write path used by the skill repair tooling.
type SkillStore interface {
	// ListProviders returns every non-deleted user that carries skill data.
	ListProviders(ctx context.Context) ([]model.Provider, error)
	// SaveProviderSkills persists Skills, ServiceTypes and SkillsWithService.
	SaveProviderSkills(ctx context.Context, p model.Provider) error
	// Lookup resolves skill ids against the catalog.
	Lookup(ctx context.Context, ids []string) (map[string]model.Skill, error)
}

// Store is the full storage contract.
type Store interface {
	Reader
	SkillStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
