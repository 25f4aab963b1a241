// Package worker runs the snapshot commit step: it scores the live roster and
// appends one history record per client per day through the store's writer.
//
// A single committer drains the queue so history writes stay serialized.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/pkg/logger"
	"github.com/okian/healthscore/pkg/metrics"
)

// Roster returns the live client records under a filter.
type Roster interface {
	CurrentClients(ctx context.Context, f model.Filter) ([]model.ClientRecord, error)
}

// Appender commits history records.
type Appender interface {
	AppendHistory(ctx context.Context, records []model.HistoryRecord) error
}

// Queue defines how the committer receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Committer processes commit jobs one at a time.
type Committer struct {
	queue    Queue
	roster   Roster
	scorer   scoring.Scorer
	appender Appender
	name     string
	groupBy  string
	onCommit func(queue.Job, int)

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewCommitter creates a committer with configuration options.
func NewCommitter(q Queue, roster Roster, scorer scoring.Scorer, appender Appender, opts ...Option) *Committer {
	c := &Committer{
		queue:    q,
		roster:   roster,
		scorer:   scorer,
		appender: appender,
		name:     "committer",
		groupBy:  model.GroupAdvisor,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named(c.name)
	return c
}

// Run drains the queue until ctx is cancelled, Shutdown is called or the queue closes.
func (c *Committer) Run(ctx context.Context) {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := c.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			jctx := logger.WithRequestID(ctx, j.ID)
			if _, err := c.Commit(jctx, j); err != nil {
				c.logger.Error(jctx, "snapshot commit failed", logger.String("day", j.Day.String()), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the committer after the job in flight, if any.
func (c *Committer) Shutdown(ctx context.Context) error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Drain waits for Run to commit every queued job and return, which it does
// once the queue is closed and empty. If ctx ends first the remaining jobs
// are abandoned as with Shutdown.
func (c *Committer) Drain(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
	}
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
	c.logger.Warn(ctx, "drain timed out")
	return fmt.Errorf("drain timed out: %w", ctx.Err())
}

// Commit scores the roster for j and appends the records. It returns the
// number of records handed to the store.
func (c *Committer) Commit(ctx context.Context, j queue.Job) (int, error) {
	start := time.Now()
	records, err := c.snapshot(ctx, j)
	if err == nil {
		err = c.appender.AppendHistory(ctx, records)
	}
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordCommit("error", 0, latency)
		metrics.RecordErrorByComponent("committer", "commit_error")
		return 0, fmt.Errorf("commit %s: %w", j.Day, err)
	}

	metrics.RecordCommit("ok", len(records), latency)
	c.logger.Info(ctx, "snapshot committed",
		logger.String("day", j.Day.String()),
		logger.String("filter", j.Filter.String()),
		logger.Int("records", len(records)),
	)
	if c.onCommit != nil {
		c.onCommit(j, len(records))
	}
	return len(records), nil
}

// snapshot scores the clients under j.Filter. The roster is loaded whole
// because a spouse inherits tenure from a payer outside the filter.
func (c *Committer) snapshot(ctx context.Context, j queue.Job) ([]model.HistoryRecord, error) {
	clients, err := c.roster.CurrentClients(ctx, model.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	clients = scoring.LinkSpouses(clients)

	records := make([]model.HistoryRecord, 0, len(clients))
	for _, cl := range clients {
		if !j.Filter.Matches(cl) {
			continue
		}
		res := c.scorer.Compute(cl)
		records = append(records, model.HistoryRecord{
			ClientID:     cl.ID,
			RecordedDate: j.Day,
			GroupKey:     cl.GroupKey(c.groupBy),
			Score:        res.Score,
			Category:     res.Category,
			Breakdown:    res.Breakdown,
		})
	}
	return records, nil
}
