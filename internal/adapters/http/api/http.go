// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	SeriesDependencies
	MovementDependencies
	CommitDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	scoreHandler    *ScoreHandler
	seriesHandler   *SeriesHandler
	movementHandler *MovementHandler
	commitHandler   *CommitHandler
}

// DefaultMaxRangeDays caps series ranges when no WithMaxRangeDays is given.
const DefaultMaxRangeDays = 3_660

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxRangeDays int
}

// WithMaxRangeDays rejects series and trend ranges longer than n days.
func WithMaxRangeDays(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxRangeDays = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{maxRangeDays: DefaultMaxRangeDays}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		scoreHandler:    NewScoreHandler(deps),
		seriesHandler:   NewSeriesHandler(deps, o.maxRangeDays),
		movementHandler: NewMovementHandler(deps),
		commitHandler:   NewCommitHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	route("/stats", "stats", s.statsHandler.HandleStats)
	route("/score/", "score", s.scoreHandler.HandleGetScore)
	route("/scores", "scores", s.scoreHandler.HandleGetScores)
	route("/series", "series", s.seriesHandler.HandleGetSeries)
	route("/trend", "trend", s.seriesHandler.HandleGetTrend)
	route("/movement", "movement", s.movementHandler.HandleGetMovement)
	route("/commits", "commits", s.commitHandler.HandlePostCommit)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseFilter reads the hierarchy filter from query parameters.
func parseFilter(r *http.Request) model.Filter {
	q := r.URL.Query()
	return model.Filter{
		Advisor:  q.Get("advisor"),
		Manager:  q.Get("manager"),
		Mediator: q.Get("mediator"),
		TeamLead: q.Get("team_lead"),
	}
}

// parseDate reads a required YYYY-MM-DD query parameter.
func parseDate(r *http.Request, name string) (calendar.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return calendar.Date{}, wrapBadRequest("missing "+name, nil)
	}
	d, err := calendar.Parse(v)
	if err != nil {
		return calendar.Date{}, wrapBadRequest("invalid "+name, err)
	}
	return d, nil
}

// parseBoundedRange reads the from/to query parameters. Ranges spanning more than
// maxDays days are rejected; maxDays <= 0 means no cap.
func parseBoundedRange(r *http.Request, maxDays int) (calendar.Range, error) {
	rng, err := parseRange(r)
	if err != nil {
		return calendar.Range{}, err
	}
	if days := rng.Days(); maxDays > 0 && days > maxDays {
		return calendar.Range{}, wrapBadRequest(fmt.Sprintf("range spans %d days, at most %d allowed", days, maxDays), nil)
	}
	return rng, nil
}

// parseRange reads the from/to query parameters.
func parseRange(r *http.Request) (calendar.Range, error) {
	from, err := parseDate(r, "from")
	if err != nil {
		return calendar.Range{}, err
	}
	to, err := parseDate(r, "to")
	if err != nil {
		return calendar.Range{}, err
	}
	return calendar.Range{From: from, To: to}, nil
}
