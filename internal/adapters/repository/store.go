// Package repository defines the history store interface and its implementations.
package repository

import (
	"context"

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
)

// Query selects history by date range and client set.
type Query struct {
	Range calendar.Range
	// ClientIDs restricts the query. Nil means every client; an empty,
	// non-nil slice matches nothing.
	ClientIDs []string
}

// Page selects a window of a scan ordered by (date, client id).
type Page struct {
	Offset int
	Limit  int
}

// Store is the read side of the persistence service.
type Store interface {
	// QueryHistory returns pre-aggregated points per (date, group key).
	QueryHistory(ctx context.Context, q Query) ([]model.TemporalPoint, error)

	// ScanHistory returns raw records one page at a time.
	ScanHistory(ctx context.Context, q Query, page Page) ([]model.HistoryRecord, error)

	// CurrentClients returns the live roster under f.
	CurrentClients(ctx context.Context, f model.Filter) ([]model.ClientRecord, error)
}

// Writer is the commit side used by the import step. Writes are serialized
// by the caller.
type Writer interface {
	// AppendHistory inserts records; an existing (client, day) record is kept.
	AppendHistory(ctx context.Context, records []model.HistoryRecord) error

	// UpsertClients replaces roster entries by id.
	UpsertClients(ctx context.Context, clients []model.ClientRecord) error
}

// ReadWriter combines Store and Writer.
type ReadWriter interface {
	Store
	Writer
	Close() error
}

// validate checks records before they are committed.
func validate(records []model.HistoryRecord, today calendar.Date) error {
	for _, r := range records {
		if r.ClientID == "" {
			return ErrInvalidRecord
		}
		if r.RecordedDate.IsZero() || r.RecordedDate.After(today) {
			return ErrFutureRecord
		}
	}
	return nil
}

// wantsNone reports whether q excludes every client.
func (q Query) wantsNone() bool { return q.ClientIDs != nil && len(q.ClientIDs) == 0 }

func (p Page) valid() bool { return p.Offset >= 0 && p.Limit > 0 }
