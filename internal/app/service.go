// Package service provides the analytics service behind the HTTP API: score
// lookups, reconstructed history series, trend and movement analyses, and the
// snapshot commit pipeline.
package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/healthscore/internal/adapters/mq/queue"
	"github.com/okian/healthscore/internal/adapters/mq/worker"
	"github.com/okian/healthscore/internal/adapters/repository"
	"github.com/okian/healthscore/internal/domain/cache"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/internal/domain/trend"
	"github.com/okian/healthscore/pkg/logger"
	"github.com/okian/healthscore/pkg/metrics"
)

// Service implements the API dependencies for the analytics system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	scorer    scoring.Scorer
	memo      *scoring.Memo
	series    *cache.Cache[[]model.TemporalPoint]
	snapshots *cache.Cache[map[string]model.Category]
	flight    singleflight.Group

	// Commit pipeline, only when the store accepts writes
	commitQueue *queue.CommitQueue
	committer   *worker.Committer

	// Configuration
	queryTimeout    time.Duration
	pageSize        int
	lookbackDays    int
	seriesCapacity  int
	scoreCapacity   int
	groupBy         string
	trendOpts       []trend.Option
	commitQueueSize int
	today           func() calendar.Date

	// Staleness: latest request key and last published result per view
	latest  map[string]string
	current map[string]SeriesResult

	// State
	started    bool
	lastRoster int

	// Logging
	logger logger.Logger
}

// New constructs a Service reading from store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		scorer:          scoring.NewEngine(),
		queryTimeout:    defaultQueryTimeout,
		pageSize:        defaultScanPageSize,
		lookbackDays:    defaultSeedLookbackDays,
		seriesCapacity:  defaultSeriesCacheSize,
		scoreCapacity:   defaultScoreCacheSize,
		groupBy:         model.GroupAdvisor,
		commitQueueSize: defaultCommitQueueSize,
		today:           calendar.Today,
		latest:          make(map[string]string),
		current:         make(map[string]SeriesResult),
		logger:          logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.memo = scoring.NewMemo(countingScorer{s.scorer}, cache.New[model.ScoreResult](cache.WithCapacity(s.scoreCapacity)))
	s.series = cache.New[[]model.TemporalPoint](cache.WithCapacity(s.seriesCapacity))
	s.snapshots = cache.New[map[string]model.Category](cache.WithCapacity(s.seriesCapacity))
	return s
}

// countingScorer records every engine run.
type countingScorer struct {
	scoring.Scorer
}

func (c countingScorer) Compute(r model.ClientRecord) model.ScoreResult {
	metrics.RecordScoreComputed()
	return c.Scorer.Compute(r)
}

// Start launches the snapshot committer when the store accepts writes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if w, ok := s.store.(repository.Writer); ok {
		s.commitQueue = queue.New(queue.WithCapacity(s.commitQueueSize))
		s.committer = worker.NewCommitter(s.commitQueue, s.store, s.memo, w,
			worker.WithLogger(s.logger),
			worker.WithGroupBy(s.groupBy),
			worker.WithOnCommit(s.committed),
		)
		go s.committer.Run(context.WithoutCancel(ctx))
	} else {
		s.logger.Warn(ctx, "store is read-only; snapshot commits disabled")
	}

	s.started = true
	s.logger.Info(ctx, "analytics service started",
		logger.Duration("queryTimeout", s.queryTimeout),
		logger.Int("scanPageSize", s.pageSize),
		logger.Int("seedLookbackDays", s.lookbackDays),
		logger.String("groupBy", s.groupBy),
		logger.Bool("commits", s.committer != nil),
	)
	return nil
}

// Stop closes the commit queue and waits for the committer to drain it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	if s.commitQueue != nil {
		_ = s.commitQueue.Close()
	}
	if s.committer != nil {
		sctx, cancel := context.WithTimeout(ctx, committerShutdownTimeout)
		if err := s.committer.Drain(sctx); err != nil {
			s.logger.Warn(ctx, "committer drain", logger.Error(err))
		}
		cancel()
	}

	s.started = false
	s.logger.Info(ctx, "analytics service stopped")
}

// ClientScore is one client's live score.
type ClientScore struct {
	ClientID  string          `json:"client_id"`
	Hierarchy model.Hierarchy `json:"hierarchy"`
	model.ScoreResult
}

// Score returns the live score of one client.
func (s *Service) Score(ctx context.Context, clientID string) (ClientScore, error) {
	roster, err := s.roster(ctx)
	if err != nil {
		return ClientScore{}, err
	}
	i := sort.Search(len(roster), func(i int) bool { return roster[i].ID >= clientID })
	if i == len(roster) || roster[i].ID != clientID {
		return ClientScore{}, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return s.score(roster[i]), nil
}

// Scores returns the live scores of every client under f, ordered by id.
func (s *Service) Scores(ctx context.Context, f model.Filter) ([]ClientScore, error) {
	start := time.Now()
	roster, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ClientScore, 0, len(roster))
	for _, c := range roster {
		if f.Matches(c) {
			out = append(out, s.score(c))
		}
	}
	metrics.RecordAnalysis("scores", float64(time.Since(start).Milliseconds()))
	return out, nil
}

func (s *Service) score(c model.ClientRecord) ClientScore {
	res, hit := s.memo.Lookup(c)
	if hit {
		metrics.RecordScoreCacheHit()
	} else {
		metrics.RecordScoreCacheMiss()
	}
	return ClientScore{ClientID: c.ID, Hierarchy: c.Hierarchy, ScoreResult: res}
}

// roster loads the whole live roster with spouse tenure resolved, sorted by id.
// Spouse links can cross filter boundaries, so filtering happens afterwards.
func (s *Service) roster(ctx context.Context) ([]model.ClientRecord, error) {
	clients, err := s.store.CurrentClients(ctx, model.Filter{})
	if err != nil {
		metrics.RecordErrorByComponent("service", "roster_error")
		return nil, fmt.Errorf("%w: roster: %w", ErrUpstreamUnavailable, err)
	}
	clients = scoring.LinkSpouses(clients)
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })

	s.mu.Lock()
	s.lastRoster = len(clients)
	s.mu.Unlock()
	metrics.UpdateRosterSize(len(clients))
	return clients, nil
}

// scope returns the client ids of roster under f, and the id restriction to
// send to the store: nil (every client, including those who left the roster)
// for an unfiltered request.
func scope(roster []model.ClientRecord, f model.Filter) (ids, restrict []string) {
	ids = make([]string, 0, len(roster))
	for _, c := range roster {
		if f.Matches(c) {
			ids = append(ids, c.ID)
		}
	}
	if f == (model.Filter{}) {
		return ids, nil
	}
	return ids, slices.Clip(ids)
}

// requestKey hashes a request's range, grouping and client set. Unrestricted
// requests also cover clients who left the roster, so they never share a key
// with a filter that happens to match the whole roster.
func requestKey(r calendar.Range, groupBy string, ids, restrict []string) string {
	if restrict == nil {
		groupBy += "|all"
	}
	return cache.RequestKey(r, groupBy, ids)
}

func newRequestContext(ctx context.Context) (context.Context, string) {
	if id := logger.RequestID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return logger.WithRequestID(ctx, id), id
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scoreHits, scoreMisses := s.memo.Stats()
	seriesHits, seriesMisses := s.series.Stats()
	stats := map[string]interface{}{
		"started":          s.started,
		"rosterSize":       s.lastRoster,
		"groupBy":          s.groupBy,
		"queryTimeoutMs":   s.queryTimeout.Milliseconds(),
		"scanPageSize":     s.pageSize,
		"seedLookbackDays": s.lookbackDays,
		"seriesCached":     s.series.Len(),
		"seriesCacheHits":  seriesHits,
		"seriesCacheMiss":  seriesMisses,
		"scoreCacheHits":   scoreHits,
		"scoreCacheMiss":   scoreMisses,
		"views":            len(s.current),
		"commitsEnabled":   s.committer != nil,
	}
	if s.commitQueue != nil {
		stats["commitQueueLength"] = s.commitQueue.Len()
	}
	return stats
}
