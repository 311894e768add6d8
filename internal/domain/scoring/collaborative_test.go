package scoring_test

import (
	"testing"

	"github.com/okian/tradelink/internal/domain/model"
	"github.com/okian/tradelink/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func booking(provider, requester, category string, status model.BookingStatus) model.Booking {
	return model.Booking{ProviderID: provider, RequesterID: requester, ServiceCategory: category, Status: status}
}

func TestScoreCollaborative(t *testing.T) {
	Convey("Given a provider and a Plumbing request", t, func() {
		p := model.Provider{ID: "p-1"}
		req := model.ServiceRequest{ID: "r-1", ServiceCategory: "Plumbing", RequesterID: "m-1"}

		Convey("When there is no history at all", func() {
			So(scoring.ScoreCollaborative(p, req, nil, nil), ShouldEqual, 0.5)
		})

		Convey("When only the provider's own completed bookings exist", func() {
			history := []model.Booking{
				booking("p-1", "m-9", "plumbing", model.BookingCompleted),
				booking("p-1", "m-9", "Plumbing", model.BookingCompleted),
				booking("p-1", "m-9", "Painting", model.BookingCompleted),
				booking("p-1", "m-9", "Plumbing", model.BookingInProgress),
				booking("p-2", "m-9", "Plumbing", model.BookingCompleted),
			}
			b := scoring.Collaborative(p, req, nil, history)

			Convey("Then success rate counts completed bookings in the category", func() {
				So(b.SuccessRate.Present, ShouldBeTrue)
				So(b.SuccessRate.Value, ShouldAlmostEqual, 2.0/3.0, 1e-9)
				So(b.Popularity.Present, ShouldBeFalse)
				So(b.RequesterFit.Present, ShouldBeFalse)
				So(b.Score(), ShouldAlmostEqual, 2.0/3.0, 1e-9)
			})
		})

		Convey("When similar requests exist", func() {
			similar := []model.ServiceRequest{
				{ID: "r-1", Status: model.RequestCompleted},
				{ID: "r-2", Status: model.RequestCompleted},
				{ID: "r-3", Status: model.RequestInProgress},
				{ID: "r-4", Status: model.RequestOpen},
				{ID: "r-5", Status: model.RequestCancelled},
			}
			b := scoring.Collaborative(p, req, similar, nil)

			Convey("Then the target itself is excluded from popularity", func() {
				So(b.Popularity.Value, ShouldAlmostEqual, 0.5, 1e-9)
				So(b.Score(), ShouldAlmostEqual, 0.5, 1e-9)
			})
		})

		Convey("When the requester has prior bookings with anyone", func() {
			history := []model.Booking{
				booking("p-7", "m-1", "Roofing", model.BookingCompleted),
				booking("p-8", "m-1", "Roofing", model.BookingInProgress),
				booking("p-8", "m-1", "Roofing", model.BookingCompleted),
				booking("p-8", "m-1", "Roofing", model.BookingCompleted),
			}
			b := scoring.Collaborative(p, req, nil, history)

			Convey("Then requester fit is their completion rate", func() {
				So(b.SuccessRate.Present, ShouldBeFalse)
				So(b.RequesterFit.Value, ShouldAlmostEqual, 0.75, 1e-9)
			})
		})

		Convey("When all three signals are present", func() {
			history := []model.Booking{
				booking("p-1", "m-9", "Plumbing", model.BookingCompleted),
				booking("p-3", "m-1", "Plumbing", model.BookingInProgress),
			}
			similar := []model.ServiceRequest{{ID: "r-2", Status: model.RequestOpen}}
			got := scoring.ScoreCollaborative(p, req, similar, history)

			Convey("Then they are blended by weight", func() {
				want := 0.40*1 + 0.30*0 + 0.30*0
				So(got, ShouldAlmostEqual, want, 1e-9)
			})
		})

		Convey("Then a different candidate gets the same category and requester signals", func() {
			similar := []model.ServiceRequest{{ID: "r-2", Status: model.RequestCompleted}}
			a := scoring.ScoreCollaborative(model.Provider{ID: "p-a"}, req, similar, nil)
			b := scoring.ScoreCollaborative(model.Provider{ID: "p-b"}, req, similar, nil)
			So(a, ShouldEqual, b)
			So(a, ShouldEqual, 1)
		})
	})
}

func TestScoreRequestAffinity(t *testing.T) {
	Convey("Given a provider's booking history", t, func() {
		history := []model.Booking{
			booking("p-1", "m-1", "Plumbing", model.BookingCompleted),
			booking("p-1", "m-1", "Cleaning", model.BookingInProgress),
		}

		Convey("Then a completed booking in the category yields the match value", func() {
			So(scoring.ScoreRequestAffinity("p-1", "plumbing", history), ShouldEqual, scoring.AffinityMatch)
		})

		Convey("Then in-progress work alone does not count", func() {
			So(scoring.ScoreRequestAffinity("p-1", "Cleaning", history), ShouldEqual, scoring.AffinityNoMatch)
		})

		Convey("Then other providers' bookings are ignored", func() {
			So(scoring.ScoreRequestAffinity("p-2", "Plumbing", history), ShouldEqual, scoring.AffinityNoMatch)
		})
	})
}
