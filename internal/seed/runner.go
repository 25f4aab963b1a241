package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/internal/adapters/mq/worker"
	"github.com/okian/healthscore/internal/adapters/repository"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/pkg/logger"
)

const progressEvery = 10

// Run populates the SQLite store at cfg.DBPath and, when cfg.BaseURL is
// set, verifies a running service against the committed data.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger

	store, err := repository.NewSQLiteStore(ctx, cfg.DBPath, repository.WithClock(cfg.Today))
	if err != nil {
		return Stats{}, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "failed to close store", logger.Error(err))
		}
	}()

	scorer := scoring.NewEngine()
	stats, err := Populate(ctx, store, scorer, cfg)
	if err != nil {
		return stats, err
	}

	if cfg.BaseURL != "" {
		roster, err := store.CurrentClients(ctx, model.Filter{})
		if err != nil {
			return stats, fmt.Errorf("load roster: %w", err)
		}
		if err := Verify(ctx, cfg, roster, scorer, &stats); err != nil {
			return stats, fmt.Errorf("verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// Populate writes cfg.Days of history ending today. Each day the roster
// drifts, is upserted as the live roster and is committed through the same
// committer the service uses, so the last day's roster stays live.
func Populate(ctx context.Context, store repository.ReadWriter, scorer scoring.Scorer, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger
	stats := Stats{StartTime: time.Now()}

	gen := newGenerator(cfg)
	roster := gen.roster()
	stats.ClientsGenerated = len(roster)

	last := cfg.Today()
	first := last.AddDays(-(cfg.Days - 1))
	committer := worker.NewCommitter(nil, store, scorer, store,
		worker.WithName("seed-committer"),
		worker.WithGroupBy(cfg.GroupBy),
		worker.WithLogger(logger.Nop()),
	)

	log.Info(ctx, "seeding history",
		logger.String("from", first.String()),
		logger.String("to", last.String()),
		logger.Int("clients", len(roster)),
		logger.String("groupBy", cfg.GroupBy),
	)

	for d := 0; d < cfg.Days; d++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("seeding interrupted: %w", err)
		}
		day := first.AddDays(d)
		if d > 0 {
			gen.advance(roster, d)
		}
		if err := store.UpsertClients(ctx, roster); err != nil {
			return stats, fmt.Errorf("upsert roster for %s: %w", day, err)
		}
		n, err := committer.Commit(ctx, queue.Job{ID: "seed-" + day.String(), Day: day})
		if err != nil {
			return stats, err
		}
		stats.DaysCommitted++
		stats.RecordsWritten += n

		if cfg.Verbose || (d+1)%progressEvery == 0 {
			log.Info(ctx, "progress",
				logger.String("day", day.String()),
				logger.Int("daysCommitted", stats.DaysCommitted),
				logger.Int("records", stats.RecordsWritten),
			)
		}
	}
	return stats, nil
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats Stats) {
	var recordsPerSecond float64
	if stats.Duration > 0 {
		recordsPerSecond = float64(stats.RecordsWritten) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("clients", stats.ClientsGenerated),
		logger.Int("daysCommitted", stats.DaysCommitted),
		logger.Int("recordsWritten", stats.RecordsWritten),
		logger.Int("scoresChecked", stats.ScoresChecked),
		logger.Int("scoreMismatches", stats.ScoreMismatches),
		logger.Int("seriesPoints", stats.SeriesPoints),
		logger.Duration("duration", stats.Duration),
		logger.Float64("recordsPerSecond", recordsPerSecond),
	)
}
