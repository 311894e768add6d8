package model

import "time"

// Proficiency grades how well a provider performs a skill.
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "Beginner"
	ProficiencyIntermediate Proficiency = "Intermediate"
	ProficiencyAdvanced     Proficiency = "Advanced"
	ProficiencyExpert       Proficiency = "Expert"
)

// Skill is a catalog entry: a named skill that belongs to one service type.
type Skill struct {
	ID            string
	Name          string
	ServiceTypeID string
}

// SkillRef points at a catalog skill. It is either unresolved (only the id is
// known) or resolved (name and service type were loaded alongside it).
type SkillRef struct {
	id            string
	name          string
	serviceTypeID string
	resolved      bool
}

// UnresolvedSkill returns a reference that carries only the skill id.
func UnresolvedSkill(id string) SkillRef {
	return SkillRef{id: id}
}

// ResolvedSkill returns a reference with its catalog fields populated.
func ResolvedSkill(id, name, serviceTypeID string) SkillRef {
	return SkillRef{id: id, name: name, serviceTypeID: serviceTypeID, resolved: true}
}

// RefFromSkill builds a resolved reference from a catalog entry.
func RefFromSkill(s Skill) SkillRef {
	return ResolvedSkill(s.ID, s.Name, s.ServiceTypeID)
}

// ID returns the referenced skill id.
func (r SkillRef) ID() string { return r.id }

// IsResolved reports whether the catalog fields are available.
func (r SkillRef) IsResolved() bool { return r.resolved }

// Resolved returns the skill name and service type id. ok is false for
// unresolved references.
func (r SkillRef) Resolved() (name, serviceTypeID string, ok bool) {
	if !r.resolved {
		return "", "", false
	}
	return r.name, r.serviceTypeID, true
}

// SkillEntry is one row of a provider's structured skill list.
type SkillEntry struct {
	Skill             SkillRef
	YearsOfExperience int
	Proficiency       Proficiency
	AddedAt           time.Time
}
