package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tradelink/internal/domain/model"
)

func TestLoadFixture(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	Convey("Given the seed fixture", t, func() {
		s := NewMemoryStore()
		So(LoadFixture(s, filepath.Join("testdata", "seed.yaml"), now), ShouldBeNil)

		Convey("providers keep nullable signals and raw skill ids", func() {
			p, err := s.GetProvider(ctx, "p-ana")
			So(err, ShouldBeNil)
			So(p.Role, ShouldEqual, model.RoleServiceProvider)
			So(*p.AverageRating, ShouldAlmostEqual, 4.8)
			So(*p.TotalJobsCompleted, ShouldEqual, 30)
			So(p.SkillsWithService, ShouldHaveLength, 2)
			So(p.SkillsWithService[1].Skill.ID(), ShouldEqual, "sk-elec")

			ben, _ := s.GetProvider(ctx, "p-ben")
			So(ben.TotalReviews, ShouldBeNil)
			So(ben.Availability, ShouldEqual, model.AvailabilityNotAvailable)
		})

		Convey("request times are anchored at the load time", func() {
			r, err := s.GetRequest(ctx, "r-sink")
			So(err, ShouldBeNil)
			So(r.ExpiresAt, ShouldEqual, now.Add(72*time.Hour))
			So(r.CreatedAt, ShouldEqual, now.Add(-time.Hour))
			So(r.IsOpenAt(now), ShouldBeTrue)

			old, _ := s.GetRequest(ctx, "r-old")
			So(old.IsOpenAt(now), ShouldBeFalse)
		})

		Convey("bookings resolve their category through the request", func() {
			bs, err := s.ListProviderBookings(ctx, "p-ana", model.HistoryStatuses)
			So(err, ShouldBeNil)
			So(bs, ShouldHaveLength, 1)
			So(bs[0].ServiceCategory, ShouldEqual, "Plumbing")
		})

		Convey("the catalog is populated", func() {
			got, _ := s.Lookup(ctx, []string{"sk-plumb", "sk-clean"})
			So(got["sk-clean"].ServiceTypeID, ShouldEqual, "st-care")
		})
	})

	Convey("Given broken fixtures", t, func() {
		dir := t.TempDir()

		Convey("a missing file is wrapped in ErrLoadFixture", func() {
			err := LoadFixture(NewMemoryStore(), filepath.Join(dir, "absent.yaml"), now)
			So(errors.Is(err, ErrLoadFixture), ShouldBeTrue)
		})

		Convey("an unknown role is rejected", func() {
			path := filepath.Join(dir, "bad.yaml")
			So(os.WriteFile(path, []byte("users:\n  - id: x\n    role: Admin\n"), 0o600), ShouldBeNil)
			err := LoadFixture(NewMemoryStore(), path, now)
			So(errors.Is(err, ErrLoadFixture), ShouldBeTrue)
			So(errors.Is(err, model.ErrUnknownValue), ShouldBeTrue)
		})
	})
}
