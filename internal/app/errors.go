package service

import (
	"errors"
	"fmt"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrUpstreamUnavailable means neither the range query nor the fallback scan produced data.
	ErrUpstreamUnavailable = errors.New("history store unavailable")

	// ErrSuperseded means a newer request for the same view arrived while this one was in flight.
	ErrSuperseded = errors.New("request superseded")

	// ErrClientNotFound means the client id is not on the live roster.
	ErrClientNotFound = errors.New("client not found")

	// ErrCommitRejected means the commit queue is full, closed or not running.
	ErrCommitRejected = errors.New("commit rejected")
)

// UpstreamUnavailableError reports a double failure: the primary query and the
// fallback scan both failed for the same request.
type UpstreamUnavailableError struct {
	Range    calendar.Range
	Filter   model.Filter
	Primary  error
	Fallback error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s for %s [%s]: primary: %v; fallback: %v",
		ErrUpstreamUnavailable, e.Range, e.Filter, e.Primary, e.Fallback)
}

// Unwrap lets errors.Is match ErrUpstreamUnavailable.
func (e *UpstreamUnavailableError) Unwrap() error { return ErrUpstreamUnavailable }

// Retryable is always true: the store may recover.
func (e *UpstreamUnavailableError) Retryable() bool { return true }
