package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/internal/adapters/mq/worker"
	"github.com/okian/healthscore/internal/adapters/repository"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

var (
	commitDay = calendar.New(2024, time.June, 10)
	errRoster = errors.New("roster unavailable")
)

type failingRoster struct{}

func (failingRoster) CurrentClients(context.Context, model.Filter) ([]model.ClientRecord, error) {
	return nil, errRoster
}

type commitLog struct {
	mu   sync.Mutex
	jobs []string
	done chan struct{}
}

func (l *commitLog) record(j queue.Job, _ int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, j.ID)
	if l.done != nil {
		close(l.done)
		l.done = nil
	}
}

func newStore(ctx context.Context) *repository.MemoryStore {
	s := repository.NewMemoryStore(repository.WithClock(func() calendar.Date { return commitDay }))
	_ = s.UpsertClients(ctx, []model.ClientRecord{
		{ID: "payer", Hierarchy: model.Hierarchy{Advisor: "ana", Manager: "m1"}, Satisfaction: model.Int(10), ReferralObserved: true,
			InstallmentsOverdue: model.Int(0), CrossSellCount: model.Int(3), TenureMonths: model.Int(30)},
		{ID: "spouse", Hierarchy: model.Hierarchy{Advisor: "ana", Manager: "m1"}, SpouseLinked: true, LinkedPayerID: "payer",
			TenureMonths: model.Int(1)},
		{ID: "late", Hierarchy: model.Hierarchy{Advisor: "bia", Manager: "m1"}, InstallmentsOverdue: model.Int(3)},
	})
	return s
}

func scan(ctx context.Context, s repository.Store) []model.HistoryRecord {
	recs, err := s.ScanHistory(ctx, repository.Query{Range: calendar.Range{From: commitDay, To: commitDay}}, repository.Page{Limit: 100})
	convey.So(err, convey.ShouldBeNil)
	return recs
}

func TestCommitter_Commit(t *testing.T) {
	convey.Convey("Given a committer over an in-memory store", t, func() {
		ctx := context.Background()
		store := newStore(ctx)
		engine := scoring.NewEngine()
		c := worker.NewCommitter(queue.New(), store, engine, store, worker.WithGroupBy(model.GroupAdvisor))

		convey.Convey("When committing the whole roster", func() {
			n, err := c.Commit(ctx, queue.Job{ID: "j1", Day: commitDay})

			convey.Convey("Then one record per client is appended with scores and group keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 3)

				byID := map[string]model.HistoryRecord{}
				for _, r := range scan(ctx, store) {
					byID[r.ClientID] = r
				}
				convey.So(byID["payer"].Score, convey.ShouldEqual, 110)
				convey.So(byID["payer"].Category, convey.ShouldEqual, model.Excellent)
				convey.So(byID["payer"].GroupKey, convey.ShouldEqual, "advisor:ana")
				convey.So(byID["late"].Score, convey.ShouldEqual, 0)
				convey.So(byID["late"].Category, convey.ShouldEqual, model.Critical)
				convey.So(byID["late"].GroupKey, convey.ShouldEqual, "advisor:bia")
				// spouse inherits the payer's 30 month tenure
				convey.So(byID["spouse"].Breakdown.Tenure, convey.ShouldEqual, 15)
			})
		})

		convey.Convey("When committing with a filter", func() {
			n, err := c.Commit(ctx, queue.Job{ID: "j2", Day: commitDay, Filter: model.Filter{Advisor: "bia"}})

			convey.Convey("Then only matching clients are written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 1)
				convey.So(len(scan(ctx, store)), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the filter excludes a spouse's linked payer", func() {
			partner := model.ClientRecord{ID: "partner", Hierarchy: model.Hierarchy{Advisor: "bia", Manager: "m1"},
				SpouseLinked: true, LinkedPayerID: "payer", TenureMonths: model.Int(1)}
			convey.So(store.UpsertClients(ctx, []model.ClientRecord{partner}), convey.ShouldBeNil)

			n, err := c.Commit(ctx, queue.Job{ID: "j5", Day: commitDay, Filter: model.Filter{Advisor: "bia"}})

			convey.Convey("Then the spouse still inherits the payer's tenure", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 2)

				linked := partner
				linked.PayerTenureMonths = model.Int(30)
				live := engine.Compute(linked)

				var got model.HistoryRecord
				for _, r := range scan(ctx, store) {
					if r.ClientID == "partner" {
						got = r
					}
				}
				convey.So(got.Breakdown.Tenure, convey.ShouldEqual, 15)
				convey.So(got.Score, convey.ShouldEqual, live.Score)
				convey.So(got.Category, convey.ShouldEqual, live.Category)
			})
		})

		convey.Convey("When committing a day after today", func() {
			_, err := c.Commit(ctx, queue.Job{ID: "j3", Day: commitDay.AddDays(1)})

			convey.Convey("Then the store rejects the records", func() {
				convey.So(errors.Is(err, repository.ErrFutureRecord), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the roster cannot be loaded", func() {
			bad := worker.NewCommitter(queue.New(), failingRoster{}, engine, store)
			_, err := bad.Commit(ctx, queue.Job{ID: "j4", Day: commitDay})

			convey.Convey("Then the error is returned and nothing is written", func() {
				convey.So(errors.Is(err, errRoster), convey.ShouldBeTrue)
				convey.So(len(scan(ctx, store)), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestCommitter_Run(t *testing.T) {
	convey.Convey("Given a running committer", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newStore(ctx)
		q := queue.New(queue.WithCapacity(4))
		log := &commitLog{done: make(chan struct{})}
		done := log.done
		c := worker.NewCommitter(q, store, scoring.NewEngine(), store, worker.WithName("committer-test"), worker.WithOnCommit(log.record))
		go c.Run(ctx)

		convey.Convey("When a job is enqueued", func() {
			id, err := q.Enqueue(ctx, queue.Job{ID: "run-1", Day: commitDay})
			convey.So(err, convey.ShouldBeNil)
			convey.So(id, convey.ShouldEqual, "run-1")

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for commit")
			}

			convey.Convey("Then it is committed and the committer shuts down cleanly", func() {
				convey.So(log.jobs, convey.ShouldResemble, []string{"run-1"})
				convey.So(len(scan(ctx, store)), convey.ShouldEqual, 3)

				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(c.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestCommitter_Drain(t *testing.T) {
	convey.Convey("Given jobs queued before the queue is closed", t, func() {
		ctx := context.Background()
		store := newStore(ctx)
		q := queue.New(queue.WithCapacity(4))
		for i, day := range []calendar.Date{commitDay.AddDays(-2), commitDay.AddDays(-1), commitDay} {
			_, err := q.Enqueue(ctx, queue.Job{ID: fmt.Sprintf("drain-%d", i), Day: day})
			convey.So(err, convey.ShouldBeNil)
		}
		convey.So(q.Close(), convey.ShouldBeNil)

		log := &commitLog{}
		c := worker.NewCommitter(q, store, scoring.NewEngine(), store, worker.WithOnCommit(log.record))

		convey.Convey("When the committer runs and is drained", func() {
			go c.Run(ctx)

			dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := c.Drain(dctx)

			convey.Convey("Then every queued job is committed before it returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(log.jobs, convey.ShouldResemble, []string{"drain-0", "drain-1", "drain-2"})
			})
		})

		convey.Convey("When the committer never runs", func() {
			dctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			convey.Convey("Then drain gives up with the deadline", func() {
				convey.So(errors.Is(c.Drain(dctx), context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
