package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/healthscore/internal/adapters/repository"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/temporal"
	"github.com/okian/healthscore/internal/domain/trend"
	"github.com/okian/healthscore/pkg/logger"
	"github.com/okian/healthscore/pkg/metrics"
)

// Series sources.
const (
	SourceCache    = "cache"
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

// SeriesRequest asks for the reconstructed daily series of the clients under
// Filter. View names the consumer (a dashboard panel, a session); a newer
// request for the same view supersedes older ones still in flight.
type SeriesRequest struct {
	View   string
	Range  calendar.Range
	Filter model.Filter
}

// SeriesResult is a reconstructed series plus request bookkeeping.
type SeriesResult struct {
	RequestID string                `json:"request_id"`
	Key       string                `json:"key"`
	View      string                `json:"view,omitempty"`
	Range     calendar.Range        `json:"range"`
	Filter    model.Filter          `json:"filter"`
	Source    string                `json:"source"`
	Clients   int                   `json:"clients"`
	Points    []model.TemporalPoint `json:"points"`
}

// TrendResult is a trend analysis over a reconstructed series.
type TrendResult struct {
	RequestID string         `json:"request_id"`
	View      string         `json:"view,omitempty"`
	Range     calendar.Range `json:"range"`
	Filter    model.Filter   `json:"filter"`
	Source    string         `json:"source"`
	Metrics   trend.Metrics  `json:"metrics"`
}

// Series returns the gap-filled series for req. The store is asked once per
// distinct (range, client set); identical requests are served from cache and
// concurrent ones share a single store call.
func (s *Service) Series(ctx context.Context, req SeriesRequest) (SeriesResult, error) {
	ctx, reqID := newRequestContext(ctx)
	start := time.Now()
	r := req.Range.Normalize()

	roster, err := s.roster(ctx)
	if err != nil {
		return SeriesResult{}, err
	}
	ids, restrict := scope(roster, req.Filter)
	key := requestKey(r, s.groupBy, ids, restrict)
	s.claim(req.View, key)

	res := SeriesResult{
		RequestID: reqID,
		Key:       key,
		View:      req.View,
		Range:     r,
		Filter:    req.Filter,
		Clients:   len(ids),
	}

	if points, ok := s.series.Get(key); ok {
		metrics.RecordSeriesCacheHit()
		res.Source = SourceCache
		res.Points = clonePoints(points)
		return s.publish(ctx, res)
	}
	metrics.RecordSeriesCacheMiss()

	// The shared load outlives any one caller; a caller that gives up
	// returns its own ctx error and leaves the load to the others.
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), r, req.Filter, restrict)
	})
	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		metrics.RecordErrorLatency("service", "series_cancelled", float64(time.Since(start).Milliseconds()))
		return SeriesResult{}, ctx.Err()
	}
	if out.Err != nil {
		metrics.RecordErrorLatency("service", "series_error", float64(time.Since(start).Milliseconds()))
		return SeriesResult{}, out.Err
	}
	loaded := out.Val.(loadResult)
	shared := out.Shared

	// Ranges reaching today can still gain records from today's commit.
	if r.To.Before(s.today()) {
		s.series.Put(key, loaded.points)
	}

	res.Source = loaded.source
	res.Points = clonePoints(loaded.points)
	s.logger.Debug(ctx, "series loaded",
		logger.String("range", r.String()),
		logger.String("source", loaded.source),
		logger.Bool("shared", shared),
		logger.Int("points", len(res.Points)),
		logger.Duration("took", time.Since(start)),
	)
	metrics.RecordAnalysis("series", float64(time.Since(start).Milliseconds()))
	return s.publish(ctx, res)
}

// Trend analyzes the series for req.
func (s *Service) Trend(ctx context.Context, req SeriesRequest) (TrendResult, error) {
	start := time.Now()
	series, err := s.Series(ctx, req)
	if err != nil {
		return TrendResult{}, err
	}
	m := trend.Analyze(series.Points, s.trendOpts...)
	metrics.RecordAnalysis("trend", float64(time.Since(start).Milliseconds()))
	return TrendResult{
		RequestID: series.RequestID,
		View:      series.View,
		Range:     series.Range,
		Filter:    series.Filter,
		Source:    series.Source,
		Metrics:   m,
	}, nil
}

// Current returns the latest series published for view.
func (s *Service) Current(view string) (SeriesResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.current[view]
	if !ok {
		return SeriesResult{}, false
	}
	res.Points = clonePoints(res.Points)
	return res, true
}

// claim marks key as the newest request of view.
func (s *Service) claim(view, key string) {
	if view == "" {
		return
	}
	s.mu.Lock()
	s.latest[view] = key
	s.mu.Unlock()
}

// publish installs res as the current result of its view unless a newer
// request for that view was claimed meanwhile.
func (s *Service) publish(ctx context.Context, res SeriesResult) (SeriesResult, error) {
	if res.View == "" {
		return res, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[res.View] != res.Key {
		metrics.RecordStaleDiscarded()
		s.logger.Debug(ctx, "discarding superseded series",
			logger.String("view", res.View),
			logger.String("key", res.Key),
		)
		return SeriesResult{}, fmt.Errorf("%w: view %s", ErrSuperseded, res.View)
	}
	s.current[res.View] = res
	return res, nil
}

type loadResult struct {
	points []model.TemporalPoint
	source string
}

// load fetches history over the range widened by the seed lookback, falling
// back to a paginated scan aggregated locally when the range query fails or
// times out, and reconstructs the requested days.
func (s *Service) load(ctx context.Context, r calendar.Range, f model.Filter, restrict []string) (loadResult, error) {
	q := repository.Query{
		Range:     calendar.Range{From: r.From.AddDays(-s.lookbackDays), To: r.To},
		ClientIDs: restrict,
	}

	source := SourcePrimary
	raw, primaryErr := s.query(ctx, q)
	if primaryErr != nil {
		source = SourceFallback
		metrics.RecordFallbackActivation()
		s.logger.Warn(ctx, "history query failed; scanning",
			logger.String("range", q.Range.String()),
			logger.Error(primaryErr),
		)

		records, fallbackErr := s.scanAll(ctx, q)
		if fallbackErr != nil {
			metrics.RecordFallbackFailure()
			metrics.RecordErrorByComponent("service", "upstream_unavailable")
			s.logger.Error(ctx, "history scan failed", logger.Error(fallbackErr))
			return loadResult{}, &UpstreamUnavailableError{
				Range:    r,
				Filter:   f,
				Primary:  primaryErr,
				Fallback: fallbackErr,
			}
		}
		raw = temporal.Aggregate(records)
	}

	return loadResult{points: temporal.Reconstruct(raw, r.From, r.To), source: source}, nil
}

// query runs the primary range query under the service timeout.
func (s *Service) query(ctx context.Context, q repository.Query) ([]model.TemporalPoint, error) {
	qctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	points, err := s.store.QueryHistory(qctx, q)
	metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RecordUpstreamFailure(reason)
		return nil, err
	}
	return points, nil
}

// scanAll pages through raw history until a short page. The whole scan
// shares one query timeout.
func (s *Service) scanAll(ctx context.Context, q repository.Query) ([]model.HistoryRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var out []model.HistoryRecord
	for offset := 0; ; offset += s.pageSize {
		page, err := s.store.ScanHistory(ctx, q, repository.Page{Offset: offset, Limit: s.pageSize})
		if err != nil {
			return nil, fmt.Errorf("scan at offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

func clonePoints(points []model.TemporalPoint) []model.TemporalPoint {
	out := make([]model.TemporalPoint, len(points))
	for i, p := range points {
		out[i] = p.Clone()
	}
	return out
}
