package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/okian/healthscore/pkg/logger"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware attaches a request id to the request context, reusing
// the caller's X-Request-ID when present, and echoes it in the response.
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	}
}

func requestID(ctx context.Context) string { return logger.RequestID(ctx) }
