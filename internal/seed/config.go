// Package seed generates a synthetic roster with daily score history, commits
// it to a history store and optionally checks a running service against it.
package seed

import (
	"time"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/pkg/logger"
)

// Config holds configuration for a seeding run.
type Config struct {
	DBPath    string               // SQLite file to populate
	Clients   int                  // Number of clients on the roster
	Days      int                  // Days of history, ending today
	Advisors  int                  // Distinct advisors
	Managers  int                  // Distinct managers
	SpouseGap int                  // Every SpouseGap-th client is linked to the previous one; 0 disables
	Seed      uint64               // Generator seed; equal seeds give equal data
	GroupBy   string               // Dimension written to history group keys
	Today     func() calendar.Date // Last history day; defaults to calendar.Today
	BaseURL   string               // Service to verify; empty skips verification
	Sample    int                  // Clients whose live score is checked over HTTP
	Workers   int                  // Concurrent verification requests
	Timeout   time.Duration        // HTTP request timeout
	Verbose   bool                 // Log every mismatch
	Logger    logger.Logger        // Defaults to a no-op logger
}

func (c Config) withDefaults() Config {
	if c.Clients <= 0 {
		c.Clients = defaultClients
	}
	if c.Days <= 0 {
		c.Days = defaultDays
	}
	if c.Advisors <= 0 {
		c.Advisors = defaultAdvisors
	}
	if c.Managers <= 0 {
		c.Managers = defaultManagers
	}
	if c.GroupBy == "" {
		c.GroupBy = model.GroupAdvisor
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Today == nil {
		c.Today = calendar.Today
	}
	return c
}

// Stats holds run statistics.
type Stats struct {
	ClientsGenerated int
	DaysCommitted    int
	RecordsWritten   int
	ScoresChecked    int
	ScoreMismatches  int
	SeriesPoints     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
