package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) StartRun(ctx context.Context, task string) (*Run, error) {
	run := &Run{
		ID:      uuid.New().String(),
		Task:    task,
		Started: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, task, started) VALUES (?, ?, ?)`,
		run.ID, run.Task, run.Started,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLite) RecordEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (id, run_id, level, action, message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, event.Level, event.Action, event.Message, event.Time,
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

func (s *SQLite) FinishRun(ctx context.Context, runID, summary string, errors, warnings int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished = ?, summary = ?, errors = ?, warnings = ? WHERE id = ?`,
		time.Now().UTC(), summary, errors, warnings, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, task, started, finished, summary, errors, warnings FROM runs WHERE id = ?`,
		runID,
	)

	var run Run
	var finished sql.NullTime
	var summary sql.NullString
	if err := row.Scan(&run.ID, &run.Task, &run.Started, &finished, &summary, &run.Errors, &run.Warnings); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %q not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		run.Finished = finished.Time
	}
	run.Summary = summary.String
	return &run, nil
}

func (s *SQLite) ListEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, level, action, message, timestamp
		 FROM run_events WHERE run_id = ? ORDER BY timestamp, rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.Level, &e.Action, &e.Message, &e.Time); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
