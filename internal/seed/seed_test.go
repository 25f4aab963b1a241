package seed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/healthscore/internal/adapters/http/api"
	"github.com/okian/healthscore/internal/adapters/repository"
	service "github.com/okian/healthscore/internal/app"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var seedDay = calendar.New(2024, time.June, 10)

func seedClock() calendar.Date { return seedDay }

func testConfig() Config {
	return Config{
		Clients:   24,
		Days:      5,
		Advisors:  3,
		Managers:  2,
		SpouseGap: 6,
		Seed:      42,
		Sample:    10,
		Workers:   4,
		Today:     seedClock,
	}.withDefaults()
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		cfg := testConfig()
		a := newGenerator(cfg).roster()
		b := newGenerator(cfg).roster()

		Convey("Then they produce the same roster", func() {
			So(a, ShouldResemble, b)
			So(len(a), ShouldEqual, cfg.Clients)
		})

		Convey("Then ids are unique and hierarchy is spread", func() {
			ids := map[string]bool{}
			advisors := map[string]bool{}
			for _, c := range a {
				ids[c.ID] = true
				advisors[c.Hierarchy.Advisor] = true
				So(c.Hierarchy.Manager, ShouldNotBeEmpty)
			}
			So(len(ids), ShouldEqual, cfg.Clients)
			So(len(advisors), ShouldEqual, cfg.Advisors)
		})

		Convey("Then every SpouseGap-th client links to its predecessor", func() {
			So(a[6].SpouseLinked, ShouldBeTrue)
			So(a[6].LinkedPayerID, ShouldEqual, a[5].ID)
			So(a[5].SpouseLinked, ShouldBeFalse)
		})

		Convey("Then advancing keeps satisfaction in range", func() {
			g := newGenerator(cfg)
			r := g.roster()
			for d := 1; d <= 60; d++ {
				g.advance(r, d)
			}
			for _, c := range r {
				if c.Satisfaction != nil {
					So(*c.Satisfaction, ShouldBeBetweenOrEqual, 0, 10)
				}
			}
		})

		Convey("Then a different seed produces different ids", func() {
			other := cfg
			other.Seed = 7
			So(newGenerator(other).roster()[0].ID, ShouldNotEqual, a[0].ID)
		})
	})
}

func TestPopulate(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(seedClock))
		cfg := testConfig()

		Convey("When populating", func() {
			stats, err := Populate(ctx, store, scoring.NewEngine(), cfg)
			So(err, ShouldBeNil)

			Convey("Then every client has one record per day", func() {
				So(stats.DaysCommitted, ShouldEqual, cfg.Days)
				So(stats.RecordsWritten, ShouldEqual, cfg.Days*cfg.Clients)

				points, err := store.QueryHistory(ctx, repository.Query{
					Range: calendar.Range{From: seedDay.AddDays(-4), To: seedDay},
				})
				So(err, ShouldBeNil)
				total := 0
				for _, p := range points {
					So(p.GroupKey, ShouldStartWith, model.GroupAdvisor+":")
					total += p.TotalClients
				}
				So(total, ShouldEqual, cfg.Days*cfg.Clients)
			})

			Convey("Then the last day's roster is live", func() {
				roster, err := store.CurrentClients(ctx, model.Filter{})
				So(err, ShouldBeNil)
				So(len(roster), ShouldEqual, cfg.Clients)
			})

			Convey("Then populating again keeps the existing records", func() {
				_, err := Populate(ctx, store, scoring.NewEngine(), cfg)
				So(err, ShouldBeNil)
				records, err := store.ScanHistory(ctx, repository.Query{
					Range: calendar.Range{From: seedDay.AddDays(-4), To: seedDay},
				}, repository.Page{Limit: 10_000})
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, cfg.Days*cfg.Clients)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Populate(cctx, store, scoring.NewEngine(), cfg)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a populated store served by the analytics API", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(seedClock))
		cfg := testConfig()
		scorer := scoring.NewEngine()
		stats, err := Populate(ctx, store, scorer, cfg)
		So(err, ShouldBeNil)

		svc := service.New(store, service.WithClock(seedClock))
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg.BaseURL = srv.URL
		roster, err := store.CurrentClients(ctx, model.Filter{})
		So(err, ShouldBeNil)

		Convey("When verifying with the same policy", func() {
			err := Verify(ctx, cfg, roster, scorer, &stats)

			Convey("Then every sampled score matches", func() {
				So(err, ShouldBeNil)
				So(stats.ScoresChecked, ShouldEqual, cfg.Sample)
				So(stats.ScoreMismatches, ShouldEqual, 0)
				So(stats.SeriesPoints, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the store roster differs from the service", func() {
			err := Verify(ctx, cfg, roster[:len(roster)-1], scorer, &stats)
			So(errors.Is(err, errRosterMismatch), ShouldBeTrue)
		})

		Convey("When the service is unreachable", func() {
			srv.Close()
			err := Verify(ctx, cfg, roster, scorer, &stats)
			So(err, ShouldNotBeNil)
		})
	})
}
