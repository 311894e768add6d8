package repository

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/tradelink/internal/domain/model"
)

// fixture mirrors the YAML seed file layout. Durations are relative to the
// load time so a seed file stays valid.
type fixture struct {
	Skills []struct {
		ID          string `koanf:"id"`
		Name        string `koanf:"name"`
		ServiceType string `koanf:"service_type"`
	} `koanf:"skills"`
	Users []struct {
		ID           string   `koanf:"id"`
		Name         string   `koanf:"name"`
		Role         string   `koanf:"role"`
		Skills       []string `koanf:"skills"`
		SkillIDs     []string `koanf:"skill_ids"`
		ServiceTypes []string `koanf:"service_types"`
		Rating       *float64 `koanf:"rating"`
		Reviews      *int     `koanf:"reviews"`
		Years        *int     `koanf:"years_experience"`
		Jobs         *int     `koanf:"jobs_completed"`
		Availability string   `koanf:"availability"`
		Verified     bool     `koanf:"verified"`
	} `koanf:"users"`
	Requests []struct {
		ID             string        `koanf:"id"`
		Title          string        `koanf:"title"`
		Category       string        `koanf:"category"`
		RequiredSkills []string      `koanf:"required_skills"`
		Status         string        `koanf:"status"`
		Requester      string        `koanf:"requester"`
		ExpiresIn      time.Duration `koanf:"expires_in"`
		Age            time.Duration `koanf:"age"`
	} `koanf:"requests"`
	Bookings []struct {
		ID        string `koanf:"id"`
		Provider  string `koanf:"provider"`
		Requester string `koanf:"requester"`
		Request   string `koanf:"request"`
		Status    string `koanf:"status"`
	} `koanf:"bookings"`
}

// LoadFixture seeds s from a YAML file. now anchors the relative durations.
func LoadFixture(s *MemoryStore, path string, now time.Time) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadFixture, path, err)
	}
	var fx fixture
	if err := k.UnmarshalWithConf("", &fx, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrLoadFixture, err)
	}

	for _, sk := range fx.Skills {
		s.PutSkill(model.Skill{ID: sk.ID, Name: sk.Name, ServiceTypeID: sk.ServiceType})
	}

	for _, u := range fx.Users {
		role, err := model.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("%w: user %s: %w", ErrLoadFixture, u.ID, err)
		}
		avail := model.AvailabilityAvailable
		if u.Availability != "" {
			if avail, err = model.ParseAvailability(u.Availability); err != nil {
				return fmt.Errorf("%w: user %s: %w", ErrLoadFixture, u.ID, err)
			}
		}
		entries := make([]model.SkillEntry, 0, len(u.SkillIDs))
		for _, id := range u.SkillIDs {
			entries = append(entries, model.SkillEntry{Skill: model.UnresolvedSkill(id), AddedAt: now})
		}
		s.PutProvider(model.Provider{
			ID:                 u.ID,
			Name:               u.Name,
			Role:               role,
			Skills:             u.Skills,
			SkillsWithService:  entries,
			ServiceTypes:       u.ServiceTypes,
			AverageRating:      u.Rating,
			TotalReviews:       u.Reviews,
			YearsExperience:    u.Years,
			TotalJobsCompleted: u.Jobs,
			Availability:       avail,
			Verified:           u.Verified,
		})
	}

	for _, r := range fx.Requests {
		status, err := model.ParseRequestStatus(r.Status)
		if err != nil {
			return fmt.Errorf("%w: request %s: %w", ErrLoadFixture, r.ID, err)
		}
		s.PutRequest(model.ServiceRequest{
			ID:              r.ID,
			Title:           r.Title,
			ServiceCategory: r.Category,
			RequiredSkills:  r.RequiredSkills,
			Status:          status,
			RequesterID:     r.Requester,
			ExpiresAt:       now.Add(r.ExpiresIn),
			CreatedAt:       now.Add(-r.Age),
		})
	}

	for _, b := range fx.Bookings {
		status, err := model.ParseBookingStatus(b.Status)
		if err != nil {
			return fmt.Errorf("%w: booking %s: %w", ErrLoadFixture, b.ID, err)
		}
		s.PutBooking(model.Booking{
			ID:               b.ID,
			ProviderID:       b.Provider,
			RequesterID:      b.Requester,
			ServiceRequestID: b.Request,
			Status:           status,
		})
	}
	return nil
}
