package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// CommitDependencies accepts daily history commits.
type CommitDependencies interface {
	Commit(ctx context.Context, day calendar.Date, f model.Filter) (string, error)
}

// CommitHandler handles history commit requests.
type CommitHandler struct {
	deps CommitDependencies
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(deps CommitDependencies) *CommitHandler {
	return &CommitHandler{deps: deps}
}

type commitRequest struct {
	Day    calendar.Date `json:"day"`
	Filter model.Filter  `json:"filter"`
}

type commitResponse struct {
	Status string        `json:"status"`
	JobID  string        `json:"job_id"`
	Day    calendar.Date `json:"day"`
}

// HandlePostCommit handles POST /commits requests. The body is optional; an
// absent day commits today's scores for the whole roster.
func (h *CommitHandler) HandlePostCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commitRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeServiceError(w, wrapBadRequest("invalid json", err))
			return
		}
	}
	if req.Day.IsZero() {
		req.Day = calendar.Today()
	}
	id, err := h.deps.Commit(r.Context(), req.Day, req.Filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, commitResponse{Status: "accepted", JobID: id, Day: req.Day})
}
