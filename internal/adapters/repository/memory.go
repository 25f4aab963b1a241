package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/temporal"
	"github.com/okian/healthscore/pkg/metrics"
)

type historyKey struct {
	clientID string
	date     calendar.Date
}

// MemoryStore is an in-process store, used when no database is configured
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	opts    storeOptions
	history map[historyKey]model.HistoryRecord
	clients map[string]model.ClientRecord
	closed  bool
}

var _ ReadWriter = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:    o,
		history: make(map[historyKey]model.HistoryRecord),
		clients: make(map[string]model.ClientRecord),
	}
}

// AppendHistory implements Writer.
func (s *MemoryStore) AppendHistory(ctx context.Context, records []model.HistoryRecord) error {
	if err := validate(records, s.opts.today()); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, r := range records {
		k := historyKey{clientID: r.ClientID, date: r.RecordedDate}
		if _, exists := s.history[k]; !exists {
			s.history[k] = r
		}
	}
	return nil
}

// UpsertClients implements Writer.
func (s *MemoryStore) UpsertClients(ctx context.Context, clients []model.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, c := range clients {
		s.clients[c.ID] = c
	}
	return nil
}

// QueryHistory implements Store.
func (s *MemoryStore) QueryHistory(ctx context.Context, q Query) ([]model.TemporalPoint, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	records, err := s.selectRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	return temporal.Aggregate(records), nil
}

// ScanHistory implements Store.
func (s *MemoryStore) ScanHistory(ctx context.Context, q Query, page Page) ([]model.HistoryRecord, error) {
	if !page.valid() {
		return nil, ErrInvalidPage
	}
	records, err := s.selectRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	if page.Offset >= len(records) {
		return []model.HistoryRecord{}, nil
	}
	end := min(page.Offset+page.Limit, len(records))
	return records[page.Offset:end], nil
}

// CurrentClients implements Store.
func (s *MemoryStore) CurrentClients(ctx context.Context, f model.Filter) ([]model.ClientRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]model.ClientRecord, 0, len(s.clients))
	for _, c := range s.clients {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements ReadWriter.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// selectRecords returns matching records ordered by (date, client id).
func (s *MemoryStore) selectRecords(ctx context.Context, q Query) ([]model.HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.wantsNone() {
		return []model.HistoryRecord{}, nil
	}
	var ids map[string]struct{}
	if q.ClientIDs != nil {
		ids = make(map[string]struct{}, len(q.ClientIDs))
		for _, id := range q.ClientIDs {
			ids[id] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	out := make([]model.HistoryRecord, 0)
	for k, r := range s.history {
		if !q.Range.Contains(k.date) {
			continue
		}
		if ids != nil {
			if _, ok := ids[k.clientID]; !ok {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].RecordedDate.Compare(out[j].RecordedDate); c != 0 {
			return c < 0
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out, nil
}
