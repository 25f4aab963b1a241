package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/seed"
	"github.com/okian/healthscore/pkg/logger"
)

// Default configuration constants.
const (
	defaultDBPath   = "healthscore.db"
	defaultClients  = 500
	defaultDays     = 90
	defaultAdvisors = 12
	defaultManagers = 3
	defaultSample   = 50
	defaultSpouse   = 15
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 30 * time.Second
	runTimeout      = 10 * time.Minute
)

func main() {
	var (
		dbPath   = flag.String("db", defaultDBPath, "SQLite file to populate")
		clients  = flag.Int("clients", defaultClients, "Number of clients on the roster")
		days     = flag.Int("days", defaultDays, "Days of history ending today")
		advisors = flag.Int("advisors", defaultAdvisors, "Number of advisors")
		managers = flag.Int("managers", defaultManagers, "Number of managers")
		spouse   = flag.Int("spouse-every", defaultSpouse, "Link every Nth client to the previous one as a spouse (0 disables)")
		seedVal  = flag.Uint64("seed", 1, "Generator seed")
		groupBy  = flag.String("group-by", model.GroupAdvisor, "History group dimension (advisor|manager|mediator|team_lead|portfolio)")
		baseURL  = flag.String("verify", "", "Base URL of a running service to verify, e.g. http://localhost:9080")
		sample   = flag.Int("sample", defaultSample, "Clients whose live score is verified")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent verification requests")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Log every day and every mismatch")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	_, err := seed.Run(ctx, seed.Config{
		DBPath:    *dbPath,
		Clients:   *clients,
		Days:      *days,
		Advisors:  *advisors,
		Managers:  *managers,
		SpouseGap: *spouse,
		Seed:      *seedVal,
		GroupBy:   *groupBy,
		BaseURL:   *baseURL,
		Sample:    *sample,
		Workers:   *workers,
		Timeout:   *timeout,
		Verbose:   *verbose,
		Logger:    logger.Named("seed"),
	})
	if err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
