package api

import (
	"context"
	"net/http"

	service "github.com/okian/healthscore/internal/app"
)

// SeriesDependencies serves reconstructed series and their trend.
type SeriesDependencies interface {
	Series(ctx context.Context, req service.SeriesRequest) (service.SeriesResult, error)
	Trend(ctx context.Context, req service.SeriesRequest) (service.TrendResult, error)
}

// SeriesHandler handles series and trend requests.
type SeriesHandler struct {
	deps         SeriesDependencies
	maxRangeDays int
}

// NewSeriesHandler creates a new series handler. Ranges longer than
// maxRangeDays are rejected; zero or less disables the cap.
func NewSeriesHandler(deps SeriesDependencies, maxRangeDays int) *SeriesHandler {
	return &SeriesHandler{deps: deps, maxRangeDays: maxRangeDays}
}

// HandleGetSeries handles GET /series requests.
func (h *SeriesHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	res, err := h.deps.Series(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetTrend handles GET /trend requests.
func (h *SeriesHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	res, err := h.deps.Trend(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SeriesHandler) request(w http.ResponseWriter, r *http.Request) (service.SeriesRequest, bool) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return service.SeriesRequest{}, false
	}
	rng, err := parseBoundedRange(r, h.maxRangeDays)
	if err != nil {
		writeServiceError(w, err)
		return service.SeriesRequest{}, false
	}
	return service.SeriesRequest{
		View:   r.URL.Query().Get("view"),
		Range:  rng,
		Filter: parseFilter(r),
	}, true
}
