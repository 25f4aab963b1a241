package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrClosed        = errors.New("store closed")
	ErrInvalidPage   = errors.New("invalid page")
	ErrInvalidRecord = errors.New("invalid history record")
	ErrFutureRecord  = errors.New("history record dated after today")
)
