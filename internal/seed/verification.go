package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/pkg/logger"
)

const scoreTolerance = 1e-9

var (
	errRosterMismatch = errors.New("roster size mismatch")
	errScoreMismatch  = errors.New("score mismatch")
	errEmptySeries    = errors.New("empty series")
)

type scoresResponse struct {
	Count int `json:"count"`
}

type clientScore struct {
	ClientID string         `json:"client_id"`
	Score    float64        `json:"score"`
	Category model.Category `json:"category"`
}

type seriesResponse struct {
	Source string                `json:"source"`
	Points []model.TemporalPoint `json:"points"`
}

// Verify checks a running service against the committed roster: the live
// roster size, a sample of live scores, and that the seeded range yields a
// series and a movement report. Expected scores use scorer, so the service
// must run the same policy.
func Verify(ctx context.Context, cfg Config, roster []model.ClientRecord, scorer scoring.Scorer, stats *Stats) error {
	cfg = cfg.withDefaults()
	log := cfg.Logger
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := client.get(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy", logger.String("baseURL", cfg.BaseURL))

	var scores scoresResponse
	if err := client.get(ctx, "/scores", &scores); err != nil {
		return err
	}
	if scores.Count != len(roster) {
		return fmt.Errorf("%w: service has %d, store has %d", errRosterMismatch, scores.Count, len(roster))
	}

	if err := verifyScores(ctx, cfg, client, roster, scorer, stats); err != nil {
		return err
	}

	last := cfg.Today()
	q := url.Values{}
	q.Set("from", last.AddDays(-(cfg.Days - 1)).String())
	q.Set("to", last.String())

	var series seriesResponse
	if err := client.get(ctx, "/series?"+q.Encode(), &series); err != nil {
		return err
	}
	if len(series.Points) == 0 {
		return errEmptySeries
	}
	stats.SeriesPoints = len(series.Points)

	if err := client.get(ctx, "/movement?"+q.Encode(), nil); err != nil {
		return err
	}
	log.Info(ctx, "verification completed",
		logger.Int("scoresChecked", stats.ScoresChecked),
		logger.Int("seriesPoints", stats.SeriesPoints),
		logger.String("seriesSource", series.Source),
	)
	return nil
}

// verifyScores fetches a sample of live scores concurrently and compares
// them with locally computed ones.
func verifyScores(ctx context.Context, cfg Config, client *httpClient, roster []model.ClientRecord, scorer scoring.Scorer, stats *Stats) error {
	linked := scoring.LinkSpouses(roster)
	sort.Slice(linked, func(i, j int) bool { return linked[i].ID < linked[j].ID })
	sample := linked
	if cfg.Sample > 0 && cfg.Sample < len(sample) {
		sample = sample[:cfg.Sample]
	}

	var (
		checked    atomic.Int64
		mismatched atomic.Int64
		failed     atomic.Int64
		wg         sync.WaitGroup
	)
	jobs := make(chan model.ClientRecord, cfg.Workers*2)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				var got clientScore
				if err := client.get(ctx, "/score/"+url.PathEscape(c.ID), &got); err != nil {
					failed.Add(1)
					cfg.Logger.Warn(ctx, "score lookup failed", logger.String("client", c.ID), logger.Error(err))
					continue
				}
				checked.Add(1)
				want := scorer.Compute(c)
				if math.Abs(got.Score-want.Score) > scoreTolerance || got.Category != want.Category {
					mismatched.Add(1)
					if cfg.Verbose {
						cfg.Logger.Warn(ctx, "score mismatch",
							logger.String("client", c.ID),
							logger.Float64("want", want.Score),
							logger.Float64("got", got.Score),
						)
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, c := range sample {
			select {
			case <-ctx.Done():
				return
			case jobs <- c:
			}
		}
	}()
	wg.Wait()

	stats.ScoresChecked = int(checked.Load())
	stats.ScoreMismatches = int(mismatched.Load())
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("score verification interrupted: %w", err)
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d score lookups failed", n)
	}
	if stats.ScoreMismatches > 0 {
		return fmt.Errorf("%w: %d of %d", errScoreMismatch, stats.ScoreMismatches, stats.ScoresChecked)
	}
	return nil
}
