package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tradelink/internal/adapters/repository"
	"github.com/okian/tradelink/internal/domain/model"
)

func driftedStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.PutSkill(model.Skill{ID: "sk-plumb", Name: "Plumbing", ServiceTypeID: "st-home"})
	s.PutSkill(model.Skill{ID: "sk-elec", Name: "Electrical", ServiceTypeID: "st-home"})
	s.PutProvider(model.Provider{ID: "p-ok", Role: model.RoleServiceProvider,
		Skills:            []string{"Plumbing"},
		SkillsWithService: []model.SkillEntry{{Skill: model.UnresolvedSkill("sk-plumb")}},
	})
	s.PutProvider(model.Provider{ID: "p-drift", Role: model.RoleServiceProvider,
		Skills: []string{"Plumbing"},
		SkillsWithService: []model.SkillEntry{
			{Skill: model.UnresolvedSkill("sk-plumb")},
			{Skill: model.UnresolvedSkill("sk-elec")},
		},
	})
	return s
}

func execute(store repository.Store, args ...string) (string, error) {
	cmd := newRootCmd(func(context.Context) (repository.Store, error) { return store, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var ex ExitCoder
	if errors.As(err, &ex) {
		return ex.ExitCode()
	}
	return -1
}

func TestRootCommand(t *testing.T) {
	convey.Convey("The root command exposes validate and repair", t, func() {
		cmd := newRootCmd(nil)
		names := map[string]bool{}
		for _, c := range cmd.Commands() {
			names[c.Name()] = true
		}
		convey.So(names["validate"], convey.ShouldBeTrue)
		convey.So(names["repair"], convey.ShouldBeTrue)

		repair, _, err := cmd.Find([]string{"repair"})
		convey.So(err, convey.ShouldBeNil)
		convey.So(repair.Flags().Lookup("dry-run"), convey.ShouldNotBeNil)
	})
}

func TestValidateCommand(t *testing.T) {
	convey.Convey("Given a store with one drifted provider", t, func() {
		store := driftedStore()

		convey.Convey("When validating", func() {
			out, err := execute(store, "validate")

			convey.Convey("Then the provider is listed and the exit code is 1", func() {
				convey.So(exitCode(err), convey.ShouldEqual, 1)
				convey.So(out, convey.ShouldContainSubstring, "p-drift\tcount_mismatch")
				convey.So(out, convey.ShouldContainSubstring, "1 of 2 providers inconsistent")
				convey.So(out, convey.ShouldNotContainSubstring, "p-ok\t")
			})
		})

		convey.Convey("When validating with JSON output", func() {
			out, err := execute(store, "validate", "--json")
			convey.So(exitCode(err), convey.ShouldEqual, 1)

			var got validateOutput
			convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
			convey.So(got.Checked, convey.ShouldEqual, 2)
			convey.So(got.Inconsistent, convey.ShouldHaveLength, 1)
			convey.So(got.Inconsistent[0].ProviderID, convey.ShouldEqual, "p-drift")
		})
	})

	convey.Convey("Given the seed fixture", t, func() {
		cmd := newRootCmd(nil)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"validate", "--fixture", "../../internal/adapters/repository/testdata/seed.yaml"})

		convey.Convey("Then every user is consistent", func() {
			convey.So(cmd.Execute(), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "0 of 3 providers inconsistent")
		})
	})

	convey.Convey("Given no store configuration", t, func() {
		cmd := newRootCmd(nil)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate"})

		convey.So(cmd.Execute(), convey.ShouldNotBeNil)
	})
}

func TestRepairCommand(t *testing.T) {
	convey.Convey("Given a store with one drifted provider", t, func() {
		store := driftedStore()

		convey.Convey("When repairing as a dry run", func() {
			out, err := execute(store, "repair", "--dry-run")

			convey.Convey("Then nothing is saved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "p-drift\tcount_mismatch\tskipped")
				convey.So(out, convey.ShouldContainSubstring, "would repair 1, failed 0")
				p, _ := store.GetProvider(context.Background(), "p-drift")
				convey.So(p.Skills, convey.ShouldResemble, []string{"Plumbing"})
			})
		})

		convey.Convey("When repairing", func() {
			out, err := execute(store, "repair", "--json")

			convey.Convey("Then the provider is saved and validate passes afterwards", func() {
				convey.So(err, convey.ShouldBeNil)
				var got repairOutput
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.DryRun, convey.ShouldBeFalse)
				convey.So(got.Totals["repaired"], convey.ShouldEqual, 1)

				p, _ := store.GetProvider(context.Background(), "p-drift")
				convey.So(p.Skills, convey.ShouldResemble, []string{"Plumbing", "Electrical"})

				_, err := execute(store, "validate")
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a provider cannot be repaired", func() {
			store.PutProvider(model.Provider{ID: "p-orphan", Role: model.RoleServiceProvider,
				Skills:            []string{"Roofing"},
				SkillsWithService: []model.SkillEntry{{Skill: model.UnresolvedSkill("sk-roof")}},
			})
			out, err := execute(store, "repair")

			convey.Convey("Then the failure is reported with exit code 1", func() {
				convey.So(exitCode(err), convey.ShouldEqual, 1)
				convey.So(out, convey.ShouldContainSubstring, "p-orphan\tunresolved\tfailed")
				convey.So(out, convey.ShouldContainSubstring, "repaired 1, failed 1")
			})
		})
	})
}
