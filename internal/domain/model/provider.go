package model

// Role distinguishes who a user is on the marketplace.
type Role string

const (
	RoleServiceProvider Role = "Service Provider"
	RoleCommunityMember Role = "Community Member"
)

// ParseRole converts a raw role label.
func ParseRole(s string) (Role, error) {
	return parseLabel("role", s, RoleServiceProvider, RoleCommunityMember)
}

// Availability is the provider's current capacity to take work.
type Availability string

const (
	AvailabilityAvailable        Availability = "Available"
	AvailabilityCurrentlyWorking Availability = "Currently Working"
	AvailabilityNotAvailable     Availability = "Not Available"
)

// ParseAvailability converts a raw availability label.
func ParseAvailability(s string) (Availability, error) {
	return parseLabel("availability", s, AvailabilityAvailable, AvailabilityCurrentlyWorking, AvailabilityNotAvailable)
}

// Provider is a marketplace user as seen by the recommendation core. Community
// members share the shape and simply carry no skills.
//
// Skills is the legacy flat label list; SkillsWithService is the structured
// list it must mirror. The numeric signals are optional: nil means the data is
// absent, which is different from a recorded zero.
type Provider struct {
	ID                 string
	Name               string
	Role               Role
	Skills             []string
	SkillsWithService  []SkillEntry
	ServiceTypes       []string
	AverageRating      *float64
	TotalReviews       *int
	YearsExperience    *int
	TotalJobsCompleted *int
	Availability       Availability
	Verified           bool
}

// Rating returns the average rating or 0 when absent.
func (p Provider) Rating() float64 {
	if p.AverageRating == nil {
		return 0
	}
	return *p.AverageRating
}

// JobsCompleted returns the completed job count or 0 when absent.
func (p Provider) JobsCompleted() int {
	if p.TotalJobsCompleted == nil {
		return 0
	}
	return *p.TotalJobsCompleted
}

// Clone returns a deep copy so callers can rewrite skill data without
// touching the original.
func (p Provider) Clone() Provider {
	out := p
	out.Skills = append([]string(nil), p.Skills...)
	out.SkillsWithService = append([]SkillEntry(nil), p.SkillsWithService...)
	out.ServiceTypes = append([]string(nil), p.ServiceTypes...)
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
