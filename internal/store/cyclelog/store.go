package cyclelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store persists finished cycle reports and their reasoning transcripts for
// later inspection. It is a log, not portfolio state.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Record is one persisted cycle.
type Record struct {
	ID         int64           `json:"id"`
	CycleID    string          `json:"cycle_id"`
	TS         int64           `json:"ts"`
	Outcome    string          `json:"outcome"`
	Incomplete bool            `json:"incomplete"`
	Report     json.RawMessage `json:"report"`
	Transcript json.RawMessage `json:"transcript,omitempty"`
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cycle log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycle_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			outcome TEXT,
			incomplete INTEGER,
			report_json TEXT,
			transcript_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_reports_cycle_id ON cycle_reports(cycle_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_reports_ts ON cycle_reports(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("cycle log store closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_reports (cycle_id, ts, outcome, incomplete, report_json, transcript_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.TS, rec.Outcome, boolToInt(rec.Incomplete), string(rec.Report), string(rec.Transcript))
	return err
}

func (s *Store) Last(ctx context.Context) (*Record, error) {
	rows, err := s.list(ctx, "", 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) ByCycleID(ctx context.Context, cycleID string) (*Record, error) {
	rows, err := s.list(ctx, cycleID, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.list(ctx, "", limit)
}

func (s *Store) list(ctx context.Context, cycleID string, limit int) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("cycle log store closed")
	}
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, cycle_id, ts, outcome, incomplete, report_json, transcript_json
		FROM cycle_reports`
	args := []any{}
	if cycleID != "" {
		query += ` WHERE cycle_id = ?`
		args = append(args, cycleID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var incomplete int
		var report, transcript sql.NullString
		if err := rows.Scan(&rec.ID, &rec.CycleID, &rec.TS, &rec.Outcome, &incomplete, &report, &transcript); err != nil {
			return nil, err
		}
		rec.Incomplete = incomplete != 0
		if report.Valid {
			rec.Report = json.RawMessage(report.String)
		}
		if transcript.Valid && transcript.String != "" {
			rec.Transcript = json.RawMessage(transcript.String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
