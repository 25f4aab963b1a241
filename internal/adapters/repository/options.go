package repository

import "github.com/okian/healthscore/internal/domain/calendar"

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	today func() calendar.Date
}

func defaultOptions() storeOptions {
	return storeOptions{today: calendar.Today}
}

// WithClock overrides the wall-clock date used to reject future records.
func WithClock(today func() calendar.Date) Option {
	return func(o *storeOptions) {
		if today != nil {
			o.today = today
		}
	}
}
