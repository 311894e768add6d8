package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tradelink/internal/adapters/mq/queue"
	"github.com/okian/tradelink/internal/adapters/mq/worker"
	"github.com/okian/tradelink/internal/adapters/repository"
	service "github.com/okian/tradelink/internal/app"
	"github.com/okian/tradelink/internal/audit"
	"github.com/okian/tradelink/internal/domain/consistency"
	"github.com/okian/tradelink/internal/domain/dedupe"
	"github.com/okian/tradelink/internal/domain/model"
)

type failingLister struct{}

func (failingLister) ListProviders(context.Context) ([]model.Provider, error) {
	return nil, errors.New("connection refused")
}

func seededStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	s.PutSkill(model.Skill{ID: "sk-plumb", Name: "Plumbing", ServiceTypeID: "st-home"})
	s.PutProvider(model.Provider{
		ID: "p-ok", Role: model.RoleServiceProvider, Verified: true,
		Skills:            []string{"Plumbing"},
		SkillsWithService: []model.SkillEntry{{Skill: model.UnresolvedSkill("sk-plumb")}},
	})
	s.PutProvider(model.Provider{
		ID: "p-drift", Role: model.RoleServiceProvider, Verified: true,
		Skills: []string{"Plumbing", "Electrical"},
		SkillsWithService: []model.SkillEntry{{Skill: model.UnresolvedSkill("sk-plumb")}},
	})
	s.PutProvider(model.Provider{
		ID: "p-ghost", Role: model.RoleServiceProvider, Verified: true,
		Skills:            []string{"Roofing"},
		SkillsWithService: []model.SkillEntry{{Skill: model.UnresolvedSkill("sk-missing")}},
	})
	return s
}

func TestParseSchedule(t *testing.T) {
	Convey("Cron specs are validated", t, func() {
		for _, spec := range []string{"@every 1h", "@hourly", "0 3 * * *", "*/15 * * * *"} {
			_, err := audit.ParseSchedule(spec)
			So(err, ShouldBeNil)
		}
		for _, spec := range []string{"", "every hour", "61 * * * *", "* * * * * *"} {
			_, err := audit.ParseSchedule(spec)
			So(errors.Is(err, audit.ErrInvalidSchedule), ShouldBeTrue)
		}

		_, err := audit.New("nope", seededStore(), queue.NewInMemoryQueue())
		So(errors.Is(err, audit.ErrInvalidSchedule), ShouldBeTrue)
	})
}

func TestRunOnce(t *testing.T) {
	Convey("Given a scheduler over a seeded store", t, func() {
		ctx := context.Background()
		store := seededStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		s, err := audit.New("@every 1h", store, q)
		So(err, ShouldBeNil)

		Convey("When one cycle runs", func() {
			sum, err := s.RunOnce(ctx)

			Convey("Then one job per provider is queued under a shared run id", func() {
				So(err, ShouldBeNil)
				So(sum.Queued, ShouldEqual, 3)
				So(sum.Rejected, ShouldEqual, 0)
				So(sum.RunID, ShouldNotBeEmpty)
				So(q.Len(ctx), ShouldEqual, 3)
				So(s.Last(), ShouldResemble, sum)

				jobs := q.Dequeue(ctx)
				for i := 0; i < 3; i++ {
					So((<-jobs).RunID, ShouldEqual, sum.RunID)
				}
			})
		})

		Convey("When the queue is too small", func() {
			small := queue.NewInMemoryQueue(queue.WithCapacity(2))
			s, err := audit.New("@every 1h", store, small)
			So(err, ShouldBeNil)

			sum, err := s.RunOnce(ctx)

			Convey("Then overflow is counted as rejected", func() {
				So(err, ShouldBeNil)
				So(sum.Queued, ShouldEqual, 2)
				So(sum.Rejected, ShouldEqual, 1)
			})
		})

		Convey("When a previous cycle is still queued", func() {
			pending := queue.NewInMemoryQueue(queue.WithCapacity(10), queue.WithDeduper(dedupe.NewInMemoryDeduper()))
			s, err := audit.New("@every 1h", store, pending)
			So(err, ShouldBeNil)

			first, err := s.RunOnce(ctx)
			So(err, ShouldBeNil)
			second, err := s.RunOnce(ctx)

			Convey("Then its providers are not queued twice", func() {
				So(err, ShouldBeNil)
				So(first.Queued, ShouldEqual, 3)
				So(second.Queued, ShouldEqual, 0)
				So(second.Pending, ShouldEqual, 3)
				So(second.Rejected, ShouldEqual, 0)
				So(pending.Len(ctx), ShouldEqual, 3)
			})
		})

		Convey("When listing fails", func() {
			s, err := audit.New("@every 1h", failingLister{}, q)
			So(err, ShouldBeNil)

			_, err = s.RunOnce(ctx)

			Convey("Then the error wraps ErrListProviders", func() {
				So(errors.Is(err, audit.ErrListProviders), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestAuditPipeline(t *testing.T) {
	Convey("Given the scheduler, worker pool and service wired together", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := seededStore()
		svc := service.New(store)
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))

		var mu sync.Mutex
		results := make(map[string]worker.Result)
		var wg sync.WaitGroup
		wg.Add(3)
		pool := worker.NewPool(2, q, svc, worker.WithObserver(func(r worker.Result) {
			mu.Lock()
			results[r.Job.ProviderID] = r
			mu.Unlock()
			wg.Done()
		}))
		pool.Start(ctx)

		s, err := audit.New("@every 1h", store, q, audit.WithRunOnStart(true))
		So(err, ShouldBeNil)
		So(s.Start(ctx), ShouldBeNil)

		Convey("When the start-up cycle has been processed", func() {
			finished := make(chan struct{})
			go func() {
				wg.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(5 * time.Second):
			}

			Convey("Then each provider has its verdict", func() {
				mu.Lock()
				defer mu.Unlock()
				So(results, ShouldHaveLength, 3)
				So(results["p-ok"].Report.Consistent, ShouldBeTrue)
				So(results["p-drift"].Report.Rule, ShouldEqual, consistency.RuleCount)
				So(results["p-ghost"].Report.Rule, ShouldEqual, consistency.RuleUnresolved)
			})

			Convey("And everything stops cleanly", func() {
				So(s.Stop(context.Background()), ShouldBeNil)
				So(pool.Shutdown(context.Background()), ShouldBeNil)
				So(pool.Processed(), ShouldEqual, int64(3))
			})
		})
	})
}
