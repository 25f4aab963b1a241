package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/pkg/metrics"
)

// SQLiteStore keeps the roster and the append-only score history in SQLite.
// History rows are never updated or deleted; one row per (client, day).
type SQLiteStore struct {
	db   *sql.DB
	opts storeOptions

	mu     sync.RWMutex
	closed bool
}

var _ ReadWriter = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) the database at path.
// Use ":memory:" for a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, opts: o}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		advisor TEXT NOT NULL DEFAULT '',
		manager TEXT NOT NULL DEFAULT '',
		mediator TEXT NOT NULL DEFAULT '',
		team_lead TEXT NOT NULL DEFAULT '',
		record_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_hierarchy
		ON clients(advisor, manager, mediator, team_lead);

	-- Append-only: one score per client per calendar day
	CREATE TABLE IF NOT EXISTS score_history (
		client_id TEXT NOT NULL,
		recorded_date TEXT NOT NULL,
		group_key TEXT NOT NULL,
		score REAL NOT NULL,
		category TEXT NOT NULL,
		satisfaction REAL NOT NULL,
		referral REAL NOT NULL,
		payment REAL NOT NULL,
		cross_sell REAL NOT NULL,
		tenure REAL NOT NULL,
		PRIMARY KEY (client_id, recorded_date)
	);

	CREATE INDEX IF NOT EXISTS idx_history_date_group
		ON score_history(recorded_date, group_key);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// AppendHistory implements Writer. Existing (client, day) rows are kept.
func (s *SQLiteStore) AppendHistory(ctx context.Context, records []model.HistoryRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := validate(records, s.opts.today()); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO score_history
			(client_id, recorded_date, group_key, score, category,
			 satisfaction, referral, payment, cross_sell, tenure)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		b := r.Breakdown
		if _, err := stmt.ExecContext(ctx, r.ClientID, r.RecordedDate.String(), r.GroupKey, r.Score, string(r.Category),
			b.Satisfaction, b.Referral, b.Payment, b.CrossSell, b.Tenure); err != nil {
			return fmt.Errorf("insert history %s@%s: %w", r.ClientID, r.RecordedDate, err)
		}
	}
	return tx.Commit()
}

// UpsertClients implements Writer.
func (s *SQLiteStore) UpsertClients(ctx context.Context, clients []model.ClientRecord) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range clients {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode client %s: %w", c.ID, err)
		}
		h := c.Hierarchy
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clients (id, advisor, manager, mediator, team_lead, record_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				advisor = excluded.advisor,
				manager = excluded.manager,
				mediator = excluded.mediator,
				team_lead = excluded.team_lead,
				record_json = excluded.record_json,
				updated_at = excluded.updated_at`,
			c.ID, h.Advisor, h.Manager, h.Mediator, h.TeamLead, string(payload), now); err != nil {
			return fmt.Errorf("upsert client %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// CurrentClients implements Store.
func (s *SQLiteStore) CurrentClients(ctx context.Context, f model.Filter) ([]model.ClientRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_json FROM clients
		WHERE (? = '' OR advisor = ?)
		  AND (? = '' OR manager = ?)
		  AND (? = '' OR mediator = ?)
		  AND (? = '' OR team_lead = ?)
		ORDER BY id`,
		f.Advisor, f.Advisor, f.Manager, f.Manager, f.Mediator, f.Mediator, f.TeamLead, f.TeamLead)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	out := make([]model.ClientRecord, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		var c model.ClientRecord
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			return nil, fmt.Errorf("decode client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// QueryHistory implements Store, aggregating in SQL.
func (s *SQLiteStore) QueryHistory(ctx context.Context, q Query) ([]model.TemporalPoint, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if q.wantsNone() {
		return []model.TemporalPoint{}, nil
	}
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_date, group_key, COUNT(*),
			AVG(score), AVG(satisfaction), AVG(referral), AVG(payment), AVG(cross_sell), AVG(tenure),
			SUM(category = 'Excellent'), SUM(category = 'Stable'),
			SUM(category = 'Warning'), SUM(category = 'Critical')
		FROM score_history`+where+`
		GROUP BY recorded_date, group_key
		ORDER BY recorded_date, group_key`, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]model.TemporalPoint, 0)
	for rows.Next() {
		var (
			date                 string
			p                    model.TemporalPoint
			exc, stb, warn, crit int
		)
		if err := rows.Scan(&date, &p.GroupKey, &p.TotalClients,
			&p.AvgScore, &p.AvgPillars.Satisfaction, &p.AvgPillars.Referral, &p.AvgPillars.Payment,
			&p.AvgPillars.CrossSell, &p.AvgPillars.Tenure,
			&exc, &stb, &warn, &crit); err != nil {
			return nil, fmt.Errorf("scan history point: %w", err)
		}
		if p.RecordedDate, err = calendar.Parse(date); err != nil {
			return nil, err
		}
		p.CountsByCategory = make(map[model.Category]int)
		for cat, n := range map[model.Category]int{model.Excellent: exc, model.Stable: stb, model.Warning: warn, model.Critical: crit} {
			if n > 0 {
				p.CountsByCategory[cat] = n
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ScanHistory implements Store.
func (s *SQLiteStore) ScanHistory(ctx context.Context, q Query, page Page) ([]model.HistoryRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !page.valid() {
		return nil, ErrInvalidPage
	}
	if q.wantsNone() {
		return []model.HistoryRecord{}, nil
	}

	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}
	args = append(args, page.Limit, page.Offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, recorded_date, group_key, score, category,
			satisfaction, referral, payment, cross_sell, tenure
		FROM score_history`+where+`
		ORDER BY recorded_date, client_id
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	defer rows.Close()

	out := make([]model.HistoryRecord, 0, page.Limit)
	for rows.Next() {
		var (
			r        model.HistoryRecord
			date     string
			category string
		)
		if err := rows.Scan(&r.ClientID, &date, &r.GroupKey, &r.Score, &category,
			&r.Breakdown.Satisfaction, &r.Breakdown.Referral, &r.Breakdown.Payment,
			&r.Breakdown.CrossSell, &r.Breakdown.Tenure); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if r.RecordedDate, err = calendar.Parse(date); err != nil {
			return nil, err
		}
		r.Category = model.Category(category)
		out = append(out, r)
	}
	return out, rows.Err()
}

// whereClause builds the range and client-set predicate. Client ids travel
// as one JSON array parameter so large sets do not hit the variable limit.
func whereClause(q Query) (string, []any, error) {
	r := q.Range.Normalize()
	clauses := []string{"recorded_date BETWEEN ? AND ?"}
	args := []any{r.From.String(), r.To.String()}
	if q.ClientIDs != nil {
		ids, err := json.Marshal(q.ClientIDs)
		if err != nil {
			return "", nil, fmt.Errorf("encode client ids: %w", err)
		}
		clauses = append(clauses, "client_id IN (SELECT value FROM json_each(?))")
		args = append(args, string(ids))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
