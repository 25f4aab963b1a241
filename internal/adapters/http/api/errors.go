package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/healthscore/internal/app"
)

// Sentinels callers can match on response-building errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// retryAfterSeconds is advertised when the history store is unavailable.
const retryAfterSeconds = 5

// failure is how one class of error is reported: the status, the code in
// the JSON body and the severity label on error metrics.
type failure struct {
	status   int
	code     string
	severity string
}

var (
	failBadRequest  = failure{http.StatusBadRequest, "bad_request", "medium"}
	failNotFound    = failure{http.StatusNotFound, "not_found", "medium"}
	failSuperseded  = failure{http.StatusConflict, "superseded", "low"}
	failBackpressed = failure{http.StatusTooManyRequests, "backpressure", "medium"}
	failInternal    = failure{http.StatusInternalServerError, "internal_error", "high"}
	failUpstream    = failure{http.StatusServiceUnavailable, "upstream_unavailable", "critical"}
	failTimeout     = failure{http.StatusServiceUnavailable, "timeout", "high"}
)

// classify maps a service or request error to its failure.
func classify(err error) failure {
	switch {
	case errors.Is(err, ErrBadRequest):
		return failBadRequest
	case errors.Is(err, service.ErrClientNotFound):
		return failNotFound
	case errors.Is(err, service.ErrSuperseded):
		return failSuperseded
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrCommitRejected):
		return failBackpressed
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return failUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failTimeout
	}
	return failInternal
}

// failureForStatus labels responses that did not go through writeServiceError,
// such as the plain 404 for an unsupported method.
func failureForStatus(status int) failure {
	for _, f := range []failure{failBadRequest, failNotFound, failSuperseded, failBackpressed, failUpstream} {
		if f.status == status {
			return f
		}
	}
	if status >= http.StatusInternalServerError {
		return failInternal
	}
	return failure{status, "client_error", "medium"}
}

// writeServiceError writes err as an errorResponse with the status classify
// picks for it.
func writeServiceError(w http.ResponseWriter, err error) {
	f := classify(err)
	switch f {
	case failBackpressed:
		if !errors.Is(err, ErrBackpressure) {
			err = fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
	case failUpstream:
		var retryable interface{ Retryable() bool }
		if errors.As(err, &retryable) && retryable.Retryable() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
	}
	if rec, ok := w.(*statusRecorder); ok {
		rec.failure = f.code
	}
	writeJSON(w, f.status, errorResponse{Code: f.code, Message: err.Error()})
}

// badRequestError is a malformed parameter. It matches ErrBadRequest and,
// when present, the parse error that caused it.
type badRequestError struct {
	msg   string
	cause error
}

func (e *badRequestError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *badRequestError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrBadRequest}
	}
	return []error{ErrBadRequest, e.cause}
}

func wrapBadRequest(msg string, cause error) error {
	return &badRequestError{msg: msg, cause: cause}
}
