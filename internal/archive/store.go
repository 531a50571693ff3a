// Package archive keeps a durable SQLite copy of every dispatched finding so
// that past runs can be queried after the in-memory state is gone.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/potooio/sentinel/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("archive is closed")

// Record is one archived finding.
type Record struct {
	RunID     string
	EventID   string
	Timestamp time.Time
	Finding   types.Finding
}

// Store is a SQLite-backed finding archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save inserts a record. Saving the same (run, event) twice is a no-op.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if s.db == nil {
		return ErrClosed
	}
	payload, err := json.Marshal(rec.Finding)
	if err != nil {
		return fmt.Errorf("marshal finding %s: %w", rec.EventID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO findings
			(run_id, event_id, event_name, station_id, severity, observed_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.EventID,
		string(rec.Finding.EventName),
		rec.Finding.StationID,
		string(rec.Finding.Severity),
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert finding %s: %w", rec.EventID, err)
	}
	return nil
}

// Query filters archived findings. Zero-valued fields match everything.
type Query struct {
	RunID     string
	StationID string
	EventName types.EventName
	Limit     int
}

// Find returns matching records, newest first.
func (s *Store) Find(ctx context.Context, q Query) ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	stmt := `SELECT run_id, event_id, observed_at, payload FROM findings WHERE 1=1`
	var args []any
	if q.RunID != "" {
		stmt += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.StationID != "" {
		stmt += ` AND station_id = ?`
		args = append(args, q.StationID)
	}
	if q.EventName != "" {
		stmt += ` AND event_name = ?`
		args = append(args, string(q.EventName))
	}
	stmt += ` ORDER BY seq DESC`
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var observed, payload string
		if err := rows.Scan(&rec.RunID, &rec.EventID, &observed, &payload); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, observed)
		if err != nil {
			return nil, fmt.Errorf("parse observed_at of %s: %w", rec.EventID, err)
		}
		rec.Timestamp = ts
		if err := json.Unmarshal([]byte(payload), &rec.Finding); err != nil {
			return nil, fmt.Errorf("decode finding %s: %w", rec.EventID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByEvent returns the number of archived findings per event name.
func (s *Store) CountByEvent(ctx context.Context, runID string) (map[types.EventName]int, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	stmt := `SELECT event_name, COUNT(*) FROM findings`
	var args []any
	if runID != "" {
		stmt += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	stmt += ` GROUP BY event_name`

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("count findings: %w", err)
	}
	defer rows.Close()

	out := make(map[types.EventName]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[types.EventName(name)] = n
	}
	return out, rows.Err()
}
