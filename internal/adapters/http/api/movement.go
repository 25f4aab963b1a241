package api

import (
	"context"
	"net/http"

	service "github.com/okian/healthscore/internal/app"
)

// MovementDependencies serves category movement between two dates.
type MovementDependencies interface {
	Movement(ctx context.Context, req service.MovementRequest) (service.MovementResult, error)
}

// MovementHandler handles movement requests.
type MovementHandler struct {
	deps MovementDependencies
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(deps MovementDependencies) *MovementHandler {
	return &MovementHandler{deps: deps}
}

// HandleGetMovement handles GET /movement?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *MovementHandler) HandleGetMovement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rng, err := parseRange(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.deps.Movement(r.Context(), service.MovementRequest{
		Filter: parseFilter(r),
		Start:  rng.From,
		End:    rng.To,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
