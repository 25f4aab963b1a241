package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks configuration values the service cannot run with.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig marks failures reading a config source.
	ErrLoadConfig = errors.New("load config failed")
)

// FieldError reports one rejected key. It matches ErrInvalidConfig.
type FieldError struct {
	Key    string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return e.Key + ": " + e.Reason
}

func (e *FieldError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

func invalid(key, format string, args ...any) error {
	return &FieldError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
