package api

import (
	"net/http"
	"time"
)

// StatsProvider reports the analytics service's counters and settings.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
}

// NewStatsHandler returns a handler whose uptime counts from now.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

type statsResponse struct {
	RequestID     string                 `json:"request_id"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Service       map[string]interface{} `json:"service"`
}

// HandleStats writes the provider snapshot under "service". A nil provider
// or snapshot yields an empty object.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	resp := statsResponse{
		RequestID:     requestID(r.Context()),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Service:       map[string]interface{}{},
	}
	if h.provider != nil {
		for k, v := range h.provider.GetStats() {
			resp.Service[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
