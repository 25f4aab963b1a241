package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/pkg/logger"
)

// Commit schedules a snapshot of the clients under f for day: the live roster
// is scored and one history record per client is appended. It returns the job
// id. Commits run one at a time in submission order; a request matching a
// commit that is still waiting shares that commit's id.
func (s *Service) Commit(ctx context.Context, day calendar.Date, f model.Filter) (string, error) {
	if day.After(s.today()) {
		return "", fmt.Errorf("%w: %s is in the future", ErrCommitRejected, day)
	}

	s.mu.RLock()
	q := s.commitQueue
	started := s.started
	s.mu.RUnlock()
	if !started || q == nil {
		return "", fmt.Errorf("%w: commits are not running", ErrCommitRejected)
	}

	j := queue.Job{ID: uuid.NewString(), Day: day, Filter: f}
	id, err := q.Enqueue(ctx, j)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCommitRejected, err)
	}
	s.logger.Info(ctx, "snapshot commit scheduled",
		logger.String("job", id),
		logger.Bool("coalesced", id != j.ID),
		logger.String("day", day.String()),
		logger.String("filter", f.String()),
	)
	return id, nil
}

// committed drops cached history once a past day gains records.
func (s *Service) committed(j queue.Job, records int) {
	if records == 0 || !j.Day.Before(s.today()) {
		return
	}
	s.series.Purge()
	s.snapshots.Purge()
}
