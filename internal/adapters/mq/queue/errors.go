package queue

import "errors"

var (
	// ErrFull is returned when every slot holds a pending job.
	ErrFull = errors.New("commit queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("commit queue closed")
)
