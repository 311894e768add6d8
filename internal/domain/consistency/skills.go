// Package consistency holds pure checks over denormalized user skill data and
// status transition guards. Nothing here performs I/O except through the
// SkillCatalog a caller passes in.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tradelink/internal/domain/model"
)

// Skill cardinality per role.
const (
	minProviderSkills = 1
	maxProviderSkills = 3
)

// Rule names used for metrics labels.
const (
	RuleCount       = "count_mismatch"
	RuleUnresolved  = "unresolved"
	RuleNotInLegacy = "not_in_legacy"
	RuleDuplicate   = "duplicate"
	RuleRole        = "role_cardinality"
	RuleUnknown     = "unknown"
)

// SkillCatalog resolves skill ids to catalog entries. Missing ids are simply
// absent from the returned map.
type SkillCatalog interface {
	Lookup(ctx context.Context, ids []string) (map[string]model.Skill, error)
}

// ValidateUserSkillConsistency reports whether the provider's skill data is
// internally consistent.
func ValidateUserSkillConsistency(p model.Provider) bool {
	return CheckUserSkillConsistency(p) == nil
}

// CheckUserSkillConsistency returns the first violated rule, or nil. Rules run
// in order: length parity, legacy membership, duplicates, role cardinality.
func CheckUserSkillConsistency(p model.Provider) error {
	if len(p.Skills) != len(p.SkillsWithService) {
		return fmt.Errorf("%d vs %d: %w", len(p.Skills), len(p.SkillsWithService), ErrSkillCountMismatch)
	}

	legacy := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		legacy[normalize(s)] = struct{}{}
	}
	for i, e := range p.SkillsWithService {
		name, _, ok := e.Skill.Resolved()
		if !ok {
			return fmt.Errorf("entry %d (%s): %w", i, e.Skill.ID(), ErrUnresolvedSkill)
		}
		if _, ok := legacy[normalize(name)]; !ok {
			return fmt.Errorf("entry %d (%s): %w", i, name, ErrSkillNotInLegacy)
		}
	}

	seen := make(map[string]struct{}, len(p.SkillsWithService))
	for _, e := range p.SkillsWithService {
		id := e.Skill.ID()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("skill %s: %w", id, ErrDuplicateSkill)
		}
		seen[id] = struct{}{}
	}

	n := len(p.Skills)
	switch p.Role {
	case model.RoleServiceProvider:
		if n < minProviderSkills || n > maxProviderSkills {
			return fmt.Errorf("service provider has %d skills: %w", n, ErrRoleCardinality)
		}
	case model.RoleCommunityMember:
		if n != 0 {
			return fmt.Errorf("community member has %d skills: %w", n, ErrRoleCardinality)
		}
	}
	return nil
}

// RuleOf maps a violation error to its rule name.
func RuleOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSkillCountMismatch):
		return RuleCount
	case errors.Is(err, ErrUnresolvedSkill):
		return RuleUnresolved
	case errors.Is(err, ErrSkillNotInLegacy):
		return RuleNotInLegacy
	case errors.Is(err, ErrDuplicateSkill):
		return RuleDuplicate
	case errors.Is(err, ErrRoleCardinality):
		return RuleRole
	}
	return RuleUnknown
}

// RepairUserSkillSync rebuilds the legacy skills and service type list from
// the structured list, then re-validates. On error the returned provider must
// not be persisted. The input is never modified.
func RepairUserSkillSync(p model.Provider) (model.Provider, error) {
	out := p.Clone()
	skills := make([]string, 0, len(out.SkillsWithService))
	for i, e := range out.SkillsWithService {
		name, _, ok := e.Skill.Resolved()
		if !ok {
			return p, fmt.Errorf("%w: entry %d (%s): %w", ErrRepairFailed, i, e.Skill.ID(), ErrUnresolvedSkill)
		}
		skills = append(skills, name)
	}
	out.Skills = skills
	out.ServiceTypes = serviceTypesOf(out.SkillsWithService)

	if err := CheckUserSkillConsistency(out); err != nil {
		return p, fmt.Errorf("%w: %w", ErrRepairFailed, err)
	}
	return out, nil
}

// ResolveSkillRefs resolves unresolved structured skills through the catalog
// without touching the derived arrays. Ids the catalog does not know stay
// unresolved so validation reports them.
func ResolveSkillRefs(ctx context.Context, p model.Provider, catalog SkillCatalog) (model.Provider, error) {
	out := p.Clone()

	var missing []string
	for _, e := range out.SkillsWithService {
		if !e.Skill.IsResolved() {
			missing = append(missing, e.Skill.ID())
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := catalog.Lookup(ctx, missing)
	if err != nil {
		return p, fmt.Errorf("lookup skills: %w", err)
	}
	for i, e := range out.SkillsWithService {
		if e.Skill.IsResolved() {
			continue
		}
		if s, ok := found[e.Skill.ID()]; ok {
			out.SkillsWithService[i].Skill = model.RefFromSkill(s)
		}
	}
	return out, nil
}

// SyncSkillsFromServiceTypes resolves every structured skill through the
// catalog and rebuilds the derived arrays from it. Running it on its own
// output returns an equal provider. It does not validate role cardinality;
// the write path decides what to do with the result.
func SyncSkillsFromServiceTypes(ctx context.Context, p model.Provider, catalog SkillCatalog) (model.Provider, error) {
	out, err := ResolveSkillRefs(ctx, p, catalog)
	if err != nil {
		return p, err
	}

	skills := make([]string, 0, len(out.SkillsWithService))
	for _, e := range out.SkillsWithService {
		name, _, ok := e.Skill.Resolved()
		if !ok {
			return p, fmt.Errorf("skill %s: %w", e.Skill.ID(), ErrUnresolvedSkill)
		}
		skills = append(skills, name)
	}
	out.Skills = skills
	out.ServiceTypes = serviceTypesOf(out.SkillsWithService)
	return out, nil
}

// serviceTypesOf returns the distinct service type ids in entry order.
func serviceTypesOf(entries []model.SkillEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		_, st, ok := e.Skill.Resolved()
		if !ok || st == "" {
			continue
		}
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}
		types = append(types, st)
	}
	return types
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
