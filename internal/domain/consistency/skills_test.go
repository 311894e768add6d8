package consistency_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeCatalog struct {
	skills map[string]model.Skill
	err    error
	calls  int
}

func (f *fakeCatalog) Lookup(_ context.Context, ids []string) (map[string]model.Skill, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]model.Skill, len(ids))
	for _, id := range ids {
		if s, ok := f.skills[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func entry(id, name, serviceType string) model.SkillEntry {
	return model.SkillEntry{Skill: model.ResolvedSkill(id, name, serviceType), Proficiency: model.ProficiencyAdvanced}
}

func plumber() model.Provider {
	return model.Provider{
		ID:     "p-1",
		Role:   model.RoleServiceProvider,
		Skills: []string{"Plumbing", "Electrical"},
		SkillsWithService: []model.SkillEntry{
			entry("sk-plumb", "Plumbing", "st-home"),
			entry("sk-elec", "Electrical", "st-home"),
		},
		ServiceTypes: []string{"st-home"},
	}
}

func TestValidateUserSkillConsistency(t *testing.T) {
	Convey("Given a consistent service provider", t, func() {
		p := plumber()

		Convey("Then validation passes", func() {
			So(consistency.ValidateUserSkillConsistency(p), ShouldBeTrue)
			So(consistency.CheckUserSkillConsistency(p), ShouldBeNil)
		})

		Convey("When legacy names differ only by case", func() {
			p.Skills = []string{"plumbing", "ELECTRICAL"}
			So(consistency.ValidateUserSkillConsistency(p), ShouldBeTrue)
		})

		Convey("When the arrays have different lengths", func() {
			p.Skills = append(p.Skills, "Roofing")

			Convey("Then the length rule fails first", func() {
				err := consistency.CheckUserSkillConsistency(p)
				So(errors.Is(err, consistency.ErrSkillCountMismatch), ShouldBeTrue)
				So(consistency.RuleOf(err), ShouldEqual, consistency.RuleCount)
			})
		})

		Convey("When a structured entry is unresolved", func() {
			p.SkillsWithService[1].Skill = model.UnresolvedSkill("sk-elec")
			err := consistency.CheckUserSkillConsistency(p)
			So(errors.Is(err, consistency.ErrUnresolvedSkill), ShouldBeTrue)
		})

		Convey("When a structured name is missing from the legacy array", func() {
			p.Skills = []string{"Plumbing", "Roofing"}
			err := consistency.CheckUserSkillConsistency(p)
			So(errors.Is(err, consistency.ErrSkillNotInLegacy), ShouldBeTrue)
			So(consistency.RuleOf(err), ShouldEqual, consistency.RuleNotInLegacy)
		})

		Convey("When the structured list repeats a skill id", func() {
			p.Skills = []string{"Plumbing", "Plumbing"}
			p.SkillsWithService = []model.SkillEntry{
				entry("sk-plumb", "Plumbing", "st-home"),
				entry("sk-plumb", "Plumbing", "st-home"),
			}
			err := consistency.CheckUserSkillConsistency(p)
			So(errors.Is(err, consistency.ErrDuplicateSkill), ShouldBeTrue)
		})

		Convey("When a provider has more than three skills", func() {
			p.Skills = []string{"A", "B", "C", "D"}
			p.SkillsWithService = []model.SkillEntry{
				entry("a", "A", "st"), entry("b", "B", "st"), entry("c", "C", "st"), entry("d", "D", "st"),
			}
			err := consistency.CheckUserSkillConsistency(p)
			So(errors.Is(err, consistency.ErrRoleCardinality), ShouldBeTrue)
		})

		Convey("When a provider has no skills", func() {
			p.Skills = nil
			p.SkillsWithService = nil
			So(consistency.ValidateUserSkillConsistency(p), ShouldBeFalse)
		})
	})

	Convey("Given a community member", t, func() {
		m := model.Provider{ID: "m-1", Role: model.RoleCommunityMember, Skills: []string{}, SkillsWithService: []model.SkillEntry{}}

		Convey("Then both empty arrays are consistent", func() {
			So(consistency.ValidateUserSkillConsistency(m), ShouldBeTrue)
		})

		Convey("When the member carries a skill", func() {
			m.Skills = []string{"Plumbing"}
			m.SkillsWithService = []model.SkillEntry{entry("sk-plumb", "Plumbing", "st-home")}
			So(consistency.ValidateUserSkillConsistency(m), ShouldBeFalse)
			So(consistency.RuleOf(consistency.CheckUserSkillConsistency(m)), ShouldEqual, consistency.RuleRole)
		})

		Convey("When only the legacy array is populated", func() {
			m.Skills = []string{"Plumbing"}
			So(errors.Is(consistency.CheckUserSkillConsistency(m), consistency.ErrSkillCountMismatch), ShouldBeTrue)
		})
	})
}

func TestRepairUserSkillSync(t *testing.T) {
	Convey("Given a provider whose legacy array drifted", t, func() {
		p := plumber()
		p.Skills = []string{"Roofing"}
		p.ServiceTypes = nil

		Convey("When repairing", func() {
			repaired, err := consistency.RepairUserSkillSync(p)

			Convey("Then the legacy array is rebuilt from the structured list", func() {
				So(err, ShouldBeNil)
				So(repaired.Skills, ShouldResemble, []string{"Plumbing", "Electrical"})
				So(repaired.ServiceTypes, ShouldResemble, []string{"st-home"})
				So(consistency.ValidateUserSkillConsistency(repaired), ShouldBeTrue)
			})

			Convey("And the input is untouched", func() {
				So(p.Skills, ShouldResemble, []string{"Roofing"})
			})
		})
	})

	Convey("Given a provider whose structured list itself is broken", t, func() {
		p := plumber()
		p.SkillsWithService = append(p.SkillsWithService, entry("sk-plumb", "Plumbing", "st-home"))

		Convey("When repairing", func() {
			_, err := consistency.RepairUserSkillSync(p)

			Convey("Then the repair is refused", func() {
				So(errors.Is(err, consistency.ErrRepairFailed), ShouldBeTrue)
				So(errors.Is(err, consistency.ErrDuplicateSkill), ShouldBeTrue)
			})
		})
	})

	Convey("Given a provider with an unresolved structured skill", t, func() {
		p := plumber()
		p.SkillsWithService[0].Skill = model.UnresolvedSkill("sk-plumb")

		Convey("Then repair fails fast", func() {
			_, err := consistency.RepairUserSkillSync(p)
			So(errors.Is(err, consistency.ErrRepairFailed), ShouldBeTrue)
			So(errors.Is(err, consistency.ErrUnresolvedSkill), ShouldBeTrue)
		})
	})
}

func TestSyncSkillsFromServiceTypes(t *testing.T) {
	Convey("Given a provider with raw skill ids", t, func() {
		catalog := &fakeCatalog{skills: map[string]model.Skill{
			"sk-plumb": {ID: "sk-plumb", Name: "Plumbing", ServiceTypeID: "st-home"},
			"sk-paint": {ID: "sk-paint", Name: "Painting", ServiceTypeID: "st-deco"},
		}}
		p := model.Provider{
			Role: model.RoleServiceProvider,
			SkillsWithService: []model.SkillEntry{
				{Skill: model.UnresolvedSkill("sk-plumb")},
				{Skill: model.UnresolvedSkill("sk-paint")},
			},
		}
		ctx := context.Background()

		Convey("When syncing", func() {
			synced, err := consistency.SyncSkillsFromServiceTypes(ctx, p, catalog)

			Convey("Then references are resolved and derived arrays rebuilt", func() {
				So(err, ShouldBeNil)
				So(synced.Skills, ShouldResemble, []string{"Plumbing", "Painting"})
				So(synced.ServiceTypes, ShouldResemble, []string{"st-home", "st-deco"})
				So(consistency.ValidateUserSkillConsistency(synced), ShouldBeTrue)
			})

			Convey("And syncing again is a no-op", func() {
				again, err := consistency.SyncSkillsFromServiceTypes(ctx, synced, catalog)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, synced)
				So(catalog.calls, ShouldEqual, 1)
			})
		})

		Convey("When the catalog does not know an id", func() {
			p.SkillsWithService = append(p.SkillsWithService, model.SkillEntry{Skill: model.UnresolvedSkill("sk-ghost")})
			_, err := consistency.SyncSkillsFromServiceTypes(ctx, p, catalog)
			So(errors.Is(err, consistency.ErrUnresolvedSkill), ShouldBeTrue)
		})

		Convey("When the catalog fails", func() {
			boom := errors.New("catalog down")
			catalog.err = boom
			_, err := consistency.SyncSkillsFromServiceTypes(ctx, p, catalog)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}

func TestResolveSkillRefs(t *testing.T) {
	Convey("Given a provider loaded with raw skill ids and a drifted legacy array", t, func() {
		catalog := &fakeCatalog{skills: map[string]model.Skill{
			"sk-plumb": {ID: "sk-plumb", Name: "Plumbing", ServiceTypeID: "st-home"},
		}}
		p := model.Provider{
			Role:   model.RoleServiceProvider,
			Skills: []string{"Roofing"},
			SkillsWithService: []model.SkillEntry{
				{Skill: model.UnresolvedSkill("sk-plumb")},
			},
		}

		Convey("When resolving", func() {
			resolved, err := consistency.ResolveSkillRefs(context.Background(), p, catalog)

			Convey("Then refs resolve but the legacy array is kept for validation", func() {
				So(err, ShouldBeNil)
				So(resolved.SkillsWithService[0].Skill.IsResolved(), ShouldBeTrue)
				So(resolved.Skills, ShouldResemble, []string{"Roofing"})
				So(errors.Is(consistency.CheckUserSkillConsistency(resolved), consistency.ErrSkillNotInLegacy), ShouldBeTrue)
			})
		})

		Convey("When an id is unknown to the catalog", func() {
			p.SkillsWithService = append(p.SkillsWithService, model.SkillEntry{Skill: model.UnresolvedSkill("sk-ghost")})
			p.Skills = []string{"Plumbing", "Ghost"}
			resolved, err := consistency.ResolveSkillRefs(context.Background(), p, catalog)

			Convey("Then it stays unresolved and validation reports it", func() {
				So(err, ShouldBeNil)
				So(resolved.SkillsWithService[1].Skill.IsResolved(), ShouldBeFalse)
				So(errors.Is(consistency.CheckUserSkillConsistency(resolved), consistency.ErrUnresolvedSkill), ShouldBeTrue)
			})
		})
	})
}
