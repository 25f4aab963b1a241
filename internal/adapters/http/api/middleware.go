package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/healthscore/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint, plus the
// error counters for every response of 400 or above.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)
		if rec.status < http.StatusBadRequest {
			return
		}

		f := failureForStatus(rec.status)
		if rec.failure != "" {
			f.code = rec.failure
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, f.code)
		metrics.RecordErrorByType(f.code, f.severity)
		metrics.RecordErrorLatency("http", f.code, ms)
	}
}

// statusRecorder remembers the status written and, when the body came from
// writeServiceError, the failure code.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	failure string
	wrote   bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wrote {
		rec.status = code
		rec.wrote = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wrote = true
	return rec.ResponseWriter.Write(b) //nolint:wrapcheck // passthrough
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }
