package consistency

import "errors"

// Sentinel kinds for skill consistency violations. Each names the first rule
// that failed so callers can log or count it.
var (
	ErrSkillCountMismatch = errors.New("skills and skillsWithService lengths differ")
	ErrUnresolvedSkill    = errors.New("structured skill is not resolved")
	ErrSkillNotInLegacy   = errors.New("structured skill missing from legacy skills")
	ErrDuplicateSkill     = errors.New("duplicate skill reference")
	ErrRoleCardinality    = errors.New("skill count not allowed for role")
	ErrRepairFailed       = errors.New("skill repair left provider inconsistent")
)
