package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/healthscore/internal/adapters/repository"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/movement"
	"github.com/okian/healthscore/pkg/logger"
	"github.com/okian/healthscore/pkg/metrics"
)

// MovementRequest asks how clients under Filter moved between categories
// from Start to End.
type MovementRequest struct {
	Filter model.Filter
	Start  calendar.Date
	End    calendar.Date
}

// MovementResult is a movement analysis plus request bookkeeping.
type MovementResult struct {
	RequestID string          `json:"request_id"`
	Start     calendar.Date   `json:"start"`
	End       calendar.Date   `json:"end"`
	Filter    model.Filter    `json:"filter"`
	Clients   int             `json:"clients"`
	Movement  movement.Result `json:"movement"`
}

// Movement compares every client's category as of Start with its category as
// of End. A date on or after today uses the live roster scored now; earlier
// dates use the last committed record at or before the date, looking back at
// most the seed lookback.
func (s *Service) Movement(ctx context.Context, req MovementRequest) (MovementResult, error) {
	ctx, reqID := newRequestContext(ctx)
	start := time.Now()
	r := calendar.Range{From: req.Start, To: req.End}.Normalize()

	roster, err := s.roster(ctx)
	if err != nil {
		return MovementResult{}, err
	}
	ids, restrict := scope(roster, req.Filter)

	res := MovementResult{
		RequestID: reqID,
		Start:     r.From,
		End:       r.To,
		Filter:    req.Filter,
		Clients:   len(ids),
	}
	if r.From == r.To {
		res.Movement = movement.Analyze(ids, movement.Snapshot{Date: r.From}, movement.Snapshot{Date: r.To})
		return res, nil
	}

	from, err := s.snapshot(ctx, r.From, roster, req.Filter, ids, restrict)
	if err != nil {
		return MovementResult{}, err
	}
	to, err := s.snapshot(ctx, r.To, roster, req.Filter, ids, restrict)
	if err != nil {
		return MovementResult{}, err
	}

	res.Movement = movement.Analyze(ids, from, to)
	s.logger.Debug(ctx, "movement analyzed",
		logger.String("range", r.String()),
		logger.Int("clients", len(ids)),
		logger.Int("edges", len(res.Movement.Edges)),
		logger.Duration("took", time.Since(start)),
	)
	metrics.RecordAnalysis("movement", float64(time.Since(start).Milliseconds()))
	return res, nil
}

// snapshot builds the category map as of day.
func (s *Service) snapshot(ctx context.Context, day calendar.Date, roster []model.ClientRecord, f model.Filter, ids, restrict []string) (movement.Snapshot, error) {
	if !day.Before(s.today()) {
		cats := make(map[string]model.Category, len(ids))
		for _, c := range roster {
			if f.Matches(c) {
				cats[c.ID] = s.score(c).Category
			}
		}
		return movement.Snapshot{Date: day, Categories: cats}, nil
	}

	key := requestKey(calendar.Range{From: day, To: day}, "movement", ids, restrict)
	if cats, ok := s.snapshots.Get(key); ok {
		return movement.Snapshot{Date: day, Categories: cats}, nil
	}

	q := repository.Query{
		Range:     calendar.Range{From: day.AddDays(-s.lookbackDays), To: day},
		ClientIDs: restrict,
	}
	records, err := s.scanAll(ctx, q)
	if err != nil {
		// Snapshots have no aggregated query to fall back from: the scan is
		// the only path, so its failure is a plain upstream error.
		metrics.RecordErrorByComponent("service", "upstream_unavailable")
		return movement.Snapshot{}, fmt.Errorf("%w: snapshot %s: %w", ErrUpstreamUnavailable, day, err)
	}

	cats := asOf(records)
	s.snapshots.Put(key, cats)
	return movement.Snapshot{Date: day, Categories: cats}, nil
}

// asOf keeps each client's latest category among records.
func asOf(records []model.HistoryRecord) map[string]model.Category {
	latest := make(map[string]calendar.Date, len(records))
	cats := make(map[string]model.Category, len(records))
	for _, r := range records {
		if d, ok := latest[r.ClientID]; ok && !r.RecordedDate.After(d) {
			continue
		}
		latest[r.ClientID] = r.RecordedDate
		cats[r.ClientID] = r.Category
	}
	return cats
}
