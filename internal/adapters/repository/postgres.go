package repository

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/pkg/logger"
)

//go:embed schema.sql
var schema string

const userColumns = `u.id, u.name, u.role, u.skills, u.service_types,
	u.average_rating, u.total_reviews, u.years_experience, u.total_jobs_completed,
	u.availability, u.verified`

const requestColumns = `r.id, r.title, r.service_category, r.required_skills,
	r.status, r.requester_id, r.expires_at, r.created_at`

const bookingColumns = `b.id, b.provider_id, b.requester_id, b.service_request_id,
	COALESCE(r.service_category, ''), b.status`

// PostgresStore is the pgx-backed Store. Soft-deleted users are invisible.
type PostgresStore struct {
	pool     *pgxpool.Pool
	maxConns int32
	migrate  bool
	logger   logger.Logger
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	s := &PostgresStore{logger: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if s.maxConns > 0 {
		cfg.MaxConns = s.maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	s.pool = pool

	if s.migrate {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		s.logger.Info(ctx, "schema applied")
	}
	s.logger.Info(ctx, "postgres store ready", logger.Int("maxConns", int(cfg.MaxConns)))
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetProvider implements Reader.
func (s *PostgresStore) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	ps, err := s.queryProviders(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1 AND u.deleted_at IS NULL`, id)
	if err != nil {
		return model.Provider{}, err
	}
	if len(ps) == 0 {
		return model.Provider{}, fmt.Errorf("provider %s: %w", id, ErrNotFound)
	}
	return ps[0], nil
}

// GetRequest implements Reader.
func (s *PostgresStore) GetRequest(ctx context.Context, id string) (model.ServiceRequest, error) {
	rs, err := s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM service_requests r WHERE r.id = $1`, id)
	if err != nil {
		return model.ServiceRequest{}, err
	}
	if len(rs) == 0 {
		return model.ServiceRequest{}, fmt.Errorf("service request %s: %w", id, ErrNotFound)
	}
	return rs[0], nil
}

// ListVerifiedProviders implements Reader.
func (s *PostgresStore) ListVerifiedProviders(ctx context.Context, includeUnavailable bool) ([]model.Provider, error) {
	return s.queryProviders(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.deleted_at IS NULL AND u.verified AND u.role = $1
		   AND ($2 OR u.availability <> $3)
		 ORDER BY u.id`,
		string(model.RoleServiceProvider), includeUnavailable, string(model.AvailabilityNotAvailable))
}

// TopRatedProviders implements Reader.
func (s *PostgresStore) TopRatedProviders(ctx context.Context, limit int) ([]model.Provider, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("top rated %d: %w", limit, ErrInvalidLimit)
	}
	return s.queryProviders(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.deleted_at IS NULL AND u.verified AND u.role = $1
		 ORDER BY u.average_rating DESC NULLS LAST, u.id
		 LIMIT $2`,
		string(model.RoleServiceProvider), limit)
}

// ListBookings implements Reader.
func (s *PostgresStore) ListBookings(ctx context.Context, statuses []model.BookingStatus) ([]model.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 LEFT JOIN service_requests r ON r.id = b.service_request_id
		 WHERE b.status = ANY($1)
		 ORDER BY b.id`,
		statusStrings(statuses))
}

// ListProviderBookings implements Reader.
func (s *PostgresStore) ListProviderBookings(ctx context.Context, providerID string, statuses []model.BookingStatus) ([]model.Booking, error) {
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 LEFT JOIN service_requests r ON r.id = b.service_request_id
		 WHERE b.provider_id = $1 AND b.status = ANY($2)
		 ORDER BY b.id`,
		providerID, statusStrings(statuses))
}

// ListRequestsByCategory implements Reader.
func (s *PostgresStore) ListRequestsByCategory(ctx context.Context, category, excludeID string, limit int) ([]model.ServiceRequest, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("requests by category %d: %w", limit, ErrInvalidLimit)
	}
	return s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM service_requests r
		 WHERE lower(r.service_category) = lower($1) AND r.id <> $2
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $3`,
		category, excludeID, limit)
}

// ListOpenRequests implements Reader.
func (s *PostgresStore) ListOpenRequests(ctx context.Context, now time.Time, limit int) ([]model.ServiceRequest, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("open requests %d: %w", limit, ErrInvalidLimit)
	}
	return s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM service_requests r
		 WHERE r.status = $1 AND r.expires_at > $2
		 ORDER BY r.created_at DESC, r.id
		 LIMIT $3`,
		string(model.RequestOpen), now, limit)
}

// ListProviders implements SkillStore.
func (s *PostgresStore) ListProviders(ctx context.Context) ([]model.Provider, error) {
	return s.queryProviders(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.deleted_at IS NULL ORDER BY u.id`)
}

// SaveProviderSkills implements SkillStore. The legacy arrays and the
// structured rows are replaced in one transaction.
func (s *PostgresStore) SaveProviderSkills(ctx context.Context, p model.Provider) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET skills = $2, service_types = $3
			 WHERE id = $1 AND deleted_at IS NULL`,
			p.ID, nonNil(p.Skills), nonNil(p.ServiceTypes))
		if err != nil {
			return fmt.Errorf("update user skills: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("provider %s: %w", p.ID, ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_skills WHERE user_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clear structured skills: %w", err)
		}
		batch := &pgx.Batch{}
		for i, e := range p.SkillsWithService {
			added := e.AddedAt
			if added.IsZero() {
				added = time.Now()
			}
			batch.Queue(
				`INSERT INTO user_skills (user_id, position, skill_id, years_of_experience, proficiency, added_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				p.ID, i, e.Skill.ID(), e.YearsOfExperience, string(e.Proficiency), added)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert structured skills: %w", err)
		}
		return nil
	})
}

// Lookup implements SkillStore.
func (s *PostgresStore) Lookup(ctx context.Context, ids []string) (map[string]model.Skill, error) {
	out := make(map[string]model.Skill, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, service_type_id FROM skills WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup skills query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sk model.Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.ServiceTypeID); err != nil {
			return nil, fmt.Errorf("lookup skills scan: %w", err)
		}
		out[sk.ID] = sk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup skills rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) queryProviders(ctx context.Context, sql string, args ...any) ([]model.Provider, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("providers query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Provider, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			p                  model.Provider
			role, availability string
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &role, &p.Skills, &p.ServiceTypes,
			&p.AverageRating, &p.TotalReviews, &p.YearsExperience, &p.TotalJobsCompleted,
			&availability, &p.Verified,
		); err != nil {
			return nil, fmt.Errorf("providers scan: %w", err)
		}
		if p.Role, err = model.ParseRole(role); err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		if p.Availability, err = model.ParseAvailability(availability); err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.ID, err)
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("providers rows: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := s.attachSkillEntries(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSkillEntries loads structured skills as unresolved references.
func (s *PostgresStore) attachSkillEntries(ctx context.Context, ps []model.Provider, index map[string]int) error {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, skill_id, years_of_experience, proficiency, added_at
		 FROM user_skills WHERE user_id = ANY($1)
		 ORDER BY user_id, position`, ids)
	if err != nil {
		return fmt.Errorf("user skills query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID, skillID, proficiency string
			e                            model.SkillEntry
		)
		if err := rows.Scan(&userID, &skillID, &e.YearsOfExperience, &proficiency, &e.AddedAt); err != nil {
			return fmt.Errorf("user skills scan: %w", err)
		}
		e.Skill = model.UnresolvedSkill(skillID)
		e.Proficiency = model.Proficiency(proficiency)
		i := index[userID]
		ps[i].SkillsWithService = append(ps[i].SkillsWithService, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("user skills rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) queryRequests(ctx context.Context, sql string, args ...any) ([]model.ServiceRequest, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("requests query: %w", err)
	}
	defer rows.Close()

	out := make([]model.ServiceRequest, 0)
	for rows.Next() {
		var (
			r      model.ServiceRequest
			status string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.ServiceCategory, &r.RequiredSkills,
			&status, &r.RequesterID, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("requests scan: %w", err)
		}
		if r.Status, err = model.ParseRequestStatus(status); err != nil {
			return nil, fmt.Errorf("service request %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("requests rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) queryBookings(ctx context.Context, sql string, args ...any) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		var (
			b      model.Booking
			status string
		)
		if err := rows.Scan(&b.ID, &b.ProviderID, &b.RequesterID, &b.ServiceRequestID,
			&b.ServiceCategory, &status); err != nil {
			return nil, fmt.Errorf("bookings scan: %w", err)
		}
		if b.Status, err = model.ParseBookingStatus(status); err != nil {
			return nil, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings rows: %w", err)
	}
	return out, nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
