package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/tradelink/internal/adapters/mq/queue"
	worker "github.com/okian/tradelink/internal/adapters/mq/worker"
	service "github.com/okian/tradelink/internal/app"
)

type mockChecker struct {
	mu      sync.Mutex
	reports map[string]service.ConsistencyReport
	errors  map[string]error
	delay   time.Duration
	checked []string
}

func newMockChecker() *mockChecker {
	return &mockChecker{
		reports: make(map[string]service.ConsistencyReport),
		errors:  make(map[string]error),
	}
}

func (m *mockChecker) CheckProviderConsistency(ctx context.Context, id string) (service.ConsistencyReport, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return service.ConsistencyReport{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, id)
	if err, ok := m.errors[id]; ok {
		return service.ConsistencyReport{}, err
	}
	if rep, ok := m.reports[id]; ok {
		return rep, nil
	}
	return service.ConsistencyReport{ProviderID: id, Consistent: true}, nil
}

// collector gathers observed results and lets a test wait for n of them.
type collector struct {
	mu      sync.Mutex
	results map[string]worker.Result
	wg      sync.WaitGroup
}

func newCollector(n int) *collector {
	c := &collector{results: make(map[string]worker.Result)}
	c.wg.Add(n)
	return c
}

func (c *collector) observe(r worker.Result) {
	c.mu.Lock()
	c.results[r.Job.ProviderID] = r
	c.mu.Unlock()
	c.wg.Done()
}

func (c *collector) wait(t time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(t):
		return false
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		checker := newMockChecker()
		checker.reports["p-bad"] = service.ConsistencyReport{
			ProviderID: "p-bad", Rule: "count_mismatch", Detail: "2 labels vs 1 entries",
		}
		checker.errors["p-err"] = errors.New("db down")

		col := newCollector(3)
		w := worker.NewInMemoryWorker(q, checker,
			worker.WithName("test-worker"),
			worker.WithObserver(col.observe),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued", func() {
			for _, id := range []string{"p-ok", "p-bad", "p-err"} {
				convey.So(q.Enqueue(ctx, queue.Job{ProviderID: id, RunID: "run-1"}), convey.ShouldBeNil)
			}
			convey.So(col.wait(2*time.Second), convey.ShouldBeTrue)

			convey.Convey("Then every outcome is reported", func() {
				convey.So(col.results["p-ok"].Report.Consistent, convey.ShouldBeTrue)
				convey.So(col.results["p-ok"].Err, convey.ShouldBeNil)
				convey.So(col.results["p-bad"].Report.Consistent, convey.ShouldBeFalse)
				convey.So(col.results["p-bad"].Report.Rule, convey.ShouldEqual, "count_mismatch")
				convey.So(col.results["p-err"].Err, convey.ShouldNotBeNil)
				convey.So(col.results["p-err"].Job.RunID, convey.ShouldEqual, "run-1")
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then a second shutdown is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then the worker stops", func() {
				stopped := false
				select {
				case <-w.Done():
					stopped = true
				case <-time.After(time.Second):
				}
				convey.So(stopped, convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		checker := newMockChecker()

		convey.Convey("When workerCount is not positive", func() {
			pool := worker.NewPool(0, q, checker)

			convey.Convey("Then a CPU based default is used", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When many jobs are queued", func() {
			ids := make([]string, 50)
			for i := range ids {
				ids[i] = "p-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
			}
			col := newCollector(len(ids))
			pool := worker.NewPool(4, q, checker, worker.WithObserver(col.observe))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for _, id := range ids {
				convey.So(q.Enqueue(ctx, queue.Job{ProviderID: id}), convey.ShouldBeNil)
			}

			convey.Convey("Then each is checked exactly once", func() {
				convey.So(col.wait(5*time.Second), convey.ShouldBeTrue)
				convey.So(pool.Processed(), convey.ShouldEqual, int64(len(ids)))
				convey.So(col.results, convey.ShouldHaveLength, len(ids))

				convey.Convey("And shutdown closes the queue", func() {
					convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
					convey.So(q.IsClosed(), convey.ShouldBeTrue)
				})
			})
		})

		convey.Convey("When shutdown races queued work", func() {
			checker.delay = 5 * time.Millisecond
			col := newCollector(5)
			pool := worker.NewPool(2, q, checker, worker.WithObserver(col.observe))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			for _, id := range []string{"p-1", "p-2", "p-3", "p-4", "p-5"} {
				convey.So(q.Enqueue(ctx, queue.Job{ProviderID: id}), convey.ShouldBeNil)
			}
			pool.Start(ctx)

			convey.Convey("Then queued jobs are drained before workers exit", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(pool.Processed(), convey.ShouldEqual, int64(5))
			})
		})
	})
}
