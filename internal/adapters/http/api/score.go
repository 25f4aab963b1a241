package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/healthscore/internal/app"
	"github.com/okian/healthscore/internal/domain/model"
)

// ScoreDependencies serves live client scores.
type ScoreDependencies interface {
	Score(ctx context.Context, clientID string) (service.ClientScore, error)
	Scores(ctx context.Context, f model.Filter) ([]service.ClientScore, error)
}

// ScoreHandler handles live score requests.
type ScoreHandler struct {
	deps ScoreDependencies
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies) *ScoreHandler {
	return &ScoreHandler{deps: deps}
}

type scoresResponse struct {
	RequestID string                `json:"request_id"`
	Filter    model.Filter          `json:"filter"`
	Count     int                   `json:"count"`
	Scores    []service.ClientScore `json:"scores"`
}

// HandleGetScore handles GET /score/{id} requests.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/score/")
	if id == "" || strings.Contains(id, "/") {
		writeServiceError(w, wrapBadRequest("missing client id", nil))
		return
	}
	res, err := h.deps.Score(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetScores handles GET /scores requests.
func (h *ScoreHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	f := parseFilter(r)
	res, err := h.deps.Scores(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res == nil {
		res = []service.ClientScore{}
	}
	writeJSON(w, http.StatusOK, scoresResponse{
		RequestID: requestID(r.Context()),
		Filter:    f,
		Count:     len(res),
		Scores:    res,
	})
}
