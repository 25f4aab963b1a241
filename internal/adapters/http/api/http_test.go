package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/healthscore/internal/adapters/http/api"
	service "github.com/okian/healthscore/internal/app"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	score      service.ClientScore
	scores     []service.ClientScore
	err        error
	lastFilter model.Filter
	lastSeries service.SeriesRequest
	lastMove   service.MovementRequest
	lastDay    calendar.Date
}

func (m *mockDeps) Score(_ context.Context, id string) (service.ClientScore, error) {
	if m.err != nil {
		return service.ClientScore{}, m.err
	}
	if id != m.score.ClientID {
		return service.ClientScore{}, fmt.Errorf("%w: %s", service.ErrClientNotFound, id)
	}
	return m.score, nil
}

func (m *mockDeps) Scores(_ context.Context, f model.Filter) ([]service.ClientScore, error) {
	m.lastFilter = f
	return m.scores, m.err
}

func (m *mockDeps) Series(_ context.Context, req service.SeriesRequest) (service.SeriesResult, error) {
	m.lastSeries = req
	if m.err != nil {
		return service.SeriesResult{}, m.err
	}
	return service.SeriesResult{View: req.View, Range: req.Range, Filter: req.Filter, Source: service.SourcePrimary, Points: []model.TemporalPoint{}}, nil
}

func (m *mockDeps) Trend(_ context.Context, req service.SeriesRequest) (service.TrendResult, error) {
	m.lastSeries = req
	if m.err != nil {
		return service.TrendResult{}, m.err
	}
	return service.TrendResult{View: req.View, Range: req.Range, Source: service.SourceCache}, nil
}

func (m *mockDeps) Movement(_ context.Context, req service.MovementRequest) (service.MovementResult, error) {
	m.lastMove = req
	if m.err != nil {
		return service.MovementResult{}, m.err
	}
	return service.MovementResult{Start: req.Start, End: req.End, Filter: req.Filter}, nil
}

func (m *mockDeps) Commit(_ context.Context, day calendar.Date, _ model.Filter) (string, error) {
	m.lastDay = day
	if m.err != nil {
		return "", m.err
	}
	return "job-1", nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"rosterSize": 3}}).Register(context.Background(), mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("Then the health endpoint serves metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint returns provider stats", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"service":{"rosterSize":3}`)
			So(w.Body.String(), ShouldContainSubstring, `"uptime_seconds":`)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("Then a caller request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set("X-Request-ID", "abc-123")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "abc-123")
			So(w.Body.String(), ShouldContainSubstring, `"request_id":"abc-123"`)
		})

		Convey("Then wrong methods are not found", func() {
			So(serve(mux, http.MethodPost, "/series?from=2024-06-01&to=2024-06-05", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/commits", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestScoreHandlers(t *testing.T) {
	Convey("Given live scores", t, func() {
		a := service.ClientScore{
			ClientID:    "a",
			Hierarchy:   model.Hierarchy{Advisor: "x"},
			ScoreResult: model.ScoreResult{Score: 110, Category: model.Excellent},
		}
		deps := &mockDeps{score: a, scores: []service.ClientScore{a}}
		mux := newMux(deps)

		Convey("When fetching one client", func() {
			w := serve(mux, http.MethodGet, "/score/a", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got service.ClientScore
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got.ClientID, ShouldEqual, "a")
			So(got.Score, ShouldEqual, 110)
			So(got.Category, ShouldEqual, model.Excellent)
		})

		Convey("When the client is unknown", func() {
			w := serve(mux, http.MethodGet, "/score/zz", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When the id is missing", func() {
			w := serve(mux, http.MethodGet, "/score/", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing with a hierarchy filter", func() {
			w := serve(mux, http.MethodGet, "/scores?advisor=x&team_lead=t", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastFilter, ShouldResemble, model.Filter{Advisor: "x", TeamLead: "t"})
			So(w.Body.String(), ShouldContainSubstring, `"count":1`)
		})

		Convey("When the filter matches nobody", func() {
			deps.scores = nil
			w := serve(mux, http.MethodGet, "/scores?advisor=nobody", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"scores":[]`)
		})
	})
}

func TestSeriesHandlers(t *testing.T) {
	Convey("Given a series handler", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When the range and filter are valid", func() {
			w := serve(mux, http.MethodGet, "/series?from=2024-06-01&to=2024-06-05&manager=m&view=dash", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastSeries.View, ShouldEqual, "dash")
			So(deps.lastSeries.Filter, ShouldResemble, model.Filter{Manager: "m"})
			So(deps.lastSeries.Range.From, ShouldResemble, calendar.New(2024, time.June, 1))
			So(deps.lastSeries.Range.To, ShouldResemble, calendar.New(2024, time.June, 5))
			So(w.Body.String(), ShouldContainSubstring, `"from":"2024-06-01"`)
		})

		Convey("When a bound is missing or malformed", func() {
			w := serve(mux, http.MethodGet, "/series?from=2024-06-01", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["message"], ShouldContainSubstring, "missing to")

			w = serve(mux, http.MethodGet, "/trend?from=June&to=2024-06-05", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the range spans the whole calendar", func() {
			w := serve(mux, http.MethodGet, "/series?from=0001-01-01&to=9999-12-31", "")

			Convey("Then it is rejected before reaching the service", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
				So(decodeError(w)["message"], ShouldContainSubstring, "3652059 days")
				So(deps.lastSeries, ShouldResemble, service.SeriesRequest{})
			})
		})

		Convey("When the range exceeds a configured cap", func() {
			week := http.NewServeMux()
			api.NewServer(deps, &mockStatsProvider{}, api.WithMaxRangeDays(7)).Register(context.Background(), week)

			So(serve(week, http.MethodGet, "/trend?from=2024-06-01&to=2024-06-07", "").Code, ShouldEqual, http.StatusOK)
			So(serve(week, http.MethodGet, "/trend?from=2024-06-08&to=2024-06-01", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the history store is unavailable", func() {
			deps.err = &service.UpstreamUnavailableError{Primary: errors.New("timeout"), Fallback: errors.New("scan")}
			w := serve(mux, http.MethodGet, "/series?from=2024-06-01&to=2024-06-05", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Header().Get("Retry-After"), ShouldEqual, "5")
			So(decodeError(w)["code"], ShouldEqual, "upstream_unavailable")
		})

		Convey("When a newer request superseded this one", func() {
			deps.err = service.ErrSuperseded
			w := serve(mux, http.MethodGet, "/trend?from=2024-06-01&to=2024-06-05&view=dash", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decodeError(w)["code"], ShouldEqual, "superseded")
		})

		Convey("When the trend is requested", func() {
			w := serve(mux, http.MethodGet, "/trend?from=2024-06-01&to=2024-06-05", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"source":"cache"`)
		})
	})
}

func TestMovementHandler(t *testing.T) {
	Convey("Given a movement handler", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When both dates are given", func() {
			w := serve(mux, http.MethodGet, "/movement?from=2024-06-05&to=2024-06-01&mediator=z", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastMove.Start, ShouldResemble, calendar.New(2024, time.June, 5))
			So(deps.lastMove.End, ShouldResemble, calendar.New(2024, time.June, 1))
			So(deps.lastMove.Filter.Mediator, ShouldEqual, "z")
		})

		Convey("When a date is missing", func() {
			w := serve(mux, http.MethodGet, "/movement?to=2024-06-01", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the roster cannot be loaded", func() {
			deps.err = fmt.Errorf("%w: roster: boom", service.ErrUpstreamUnavailable)
			w := serve(mux, http.MethodGet, "/movement?from=2024-06-01&to=2024-06-05", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Header().Get("Retry-After"), ShouldBeEmpty)
		})
	})
}

func TestCommitHandler(t *testing.T) {
	Convey("Given a commit handler", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When committing an explicit day", func() {
			w := serve(mux, http.MethodPost, "/commits", `{"day":"2024-06-03","filter":{"advisor":"x"}}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.lastDay, ShouldResemble, calendar.New(2024, time.June, 3))
			So(w.Body.String(), ShouldContainSubstring, `"job_id":"job-1"`)
		})

		Convey("When the body is empty", func() {
			w := serve(mux, http.MethodPost, "/commits", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.lastDay, ShouldResemble, calendar.Today())
		})

		Convey("When the body is invalid", func() {
			w := serve(mux, http.MethodPost, "/commits", `{"day":"yesterday"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue rejects the job", func() {
			deps.err = fmt.Errorf("%w: queue full", service.ErrCommitRejected)
			w := serve(mux, http.MethodPost, "/commits", `{"day":"2024-06-03"}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w)["code"], ShouldEqual, "backpressure")
		})
	})
}
