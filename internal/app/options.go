package service

import (
	"time"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/internal/domain/trend"
	"github.com/okian/healthscore/pkg/logger"
)

// Default service configuration constants.
const (
	defaultQueryTimeout      = 30 * time.Second
	defaultScanPageSize      = 5_000
	defaultSeedLookbackDays  = 90
	defaultSeriesCacheSize   = 256
	defaultScoreCacheSize    = 100_000
	defaultCommitQueueSize   = 64
	committerShutdownTimeout = 5 * time.Second
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorer replaces the default score engine.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithQueryTimeout bounds each primary range query.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// WithScanPageSize sets the page size of the fallback scan.
func WithScanPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSeedLookbackDays widens history queries backwards by n days.
func WithSeedLookbackDays(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.lookbackDays = n
		}
	}
}

// WithSeriesCacheCapacity bounds the reconstructed series and snapshot caches.
func WithSeriesCacheCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.seriesCapacity = n
		}
	}
}

// WithScoreCacheCapacity bounds the score memo.
func WithScoreCacheCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoreCapacity = n
		}
	}
}

// WithGroupBy sets the hierarchy dimension committed history is grouped by.
func WithGroupBy(dimension string) Option {
	return func(s *Service) {
		if dimension != "" {
			s.groupBy = dimension
		}
	}
}

// WithTrendOptions passes options to every trend analysis.
func WithTrendOptions(opts ...trend.Option) Option {
	return func(s *Service) {
		s.trendOpts = append(s.trendOpts, opts...)
	}
}

// WithCommitQueueSize bounds pending snapshot commits.
func WithCommitQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.commitQueueSize = n
		}
	}
}

// WithClock overrides the wall-clock date.
func WithClock(today func() calendar.Date) Option {
	return func(s *Service) {
		if today != nil {
			s.today = today
		}
	}
}
