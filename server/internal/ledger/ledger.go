package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/obsidianstack/reportvault/server/internal/queue"
)

//go:embed schema.sql
var schemaSQL string

// DefaultLimit caps Recent when the caller passes a non-positive limit.
const DefaultLimit = 100

// Entry is one journaled queue result.
type Entry struct {
	ID         int64         `json:"id"`
	File       string        `json:"file"`
	Collection string        `json:"collection"`
	Outcome    queue.Outcome `json:"outcome"`
	DocumentID string        `json:"document_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	At         time.Time     `json:"at"`
}

// Ledger is a SQLite-backed queue.Recorder.
type Ledger struct {
	db *sql.DB
}

var _ queue.Recorder = (*Ledger)(nil)

// Open creates or opens the journal at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: connect %q: %w", path, err)
	}

	// One writer; the queue records from a single goroutine anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends one queue result.
func (l *Ledger) Record(ctx context.Context, r queue.Result) error {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO results (file, collection, outcome, document_id, reason, at_unix_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.File, r.Collection, string(r.Outcome), r.DocumentID, r.Reason, at.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: record %q: %w", r.File, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, file, collection, outcome, document_id, reason, at_unix_ns
		 FROM results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e       Entry
			outcome string
			atNS    int64
		)
		if err := rows.Scan(&e.ID, &e.File, &e.Collection, &outcome, &e.DocumentID, &e.Reason, &atNS); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.Outcome = queue.Outcome(outcome)
		e.At = time.Unix(0, atNS).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate: %w", err)
	}
	return out, nil
}

// Counts returns the number of journaled results per outcome.
func (l *Ledger) Counts(ctx context.Context) (map[queue.Outcome]int64, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM results GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query counts: %w", err)
	}
	defer rows.Close()

	out := make(map[queue.Outcome]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out[queue.Outcome(outcome)] = n
	}
	return out, rows.Err()
}
