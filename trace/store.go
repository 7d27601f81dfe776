package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Schema for the attempt_traces table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS attempt_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT,
	op TEXT NOT NULL,
	query TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	kind TEXT,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempt_traces_ts ON attempt_traces(timestamp);
CREATE INDEX IF NOT EXISTS idx_attempt_traces_tid ON attempt_traces(trace_id) WHERE trace_id != '';
`

// Store persists attempt entries to SQLite asynchronously.
type Store struct {
	*batcher
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a store backed by db (opened with the "sqlite" driver).
func NewStore(db *sql.DB, opts ...Option) *Store {
	o := buildOptions(opts)
	s := &Store{db: db, logger: o.logger}
	s.batcher = startBatcher(o, s.insert)
	return s
}

// Init creates the attempt_traces table if it doesn't exist.
func (s *Store) Init() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("trace: init schema: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty traceID
// returns entries of every trace.
func (s *Store) Recent(ctx context.Context, traceID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT trace_id, op, query, attempt, duration_us, kind, error, timestamp
		FROM attempt_traces`
	args := []any{}
	if traceID != "" {
		q += ` WHERE trace_id = ?`
		args = append(args, traceID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: recent: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var tid, kind, msg sql.NullString
		if err := rows.Scan(&tid, &e.Op, &e.Query, &e.Attempt, &e.DurationUs, &kind, &msg, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("trace: recent: scan: %w", err)
		}
		e.TraceID, e.Kind, e.Error = tid.String, kind.String, msg.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) insert(batch []*Entry) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("trace: store: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO attempt_traces
		(trace_id, op, query, attempt, duration_us, kind, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		s.logger.Error("trace: store: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.TraceID, e.Op, e.Query, e.Attempt, e.DurationUs, e.Kind, e.Error, e.Timestamp); err != nil {
			s.logger.Error("trace: store: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("trace: store: commit", "error", err)
	}
}
