// Package history persists batch runs and their events so past runs stay
// inspectable after their log files are rotated away.
package history

import (
	"context"
	"time"
)

// Event is one recorded aggregator event.
type Event struct {
	ID      string
	RunID   string
	Level   string
	Action  string
	Message string
	Time    time.Time
}

// Run is one batch run with its final outcome. Finished stays zero and
// Summary empty until the run is finalized.
type Run struct {
	ID       string
	Task     string
	Started  time.Time
	Finished time.Time
	Summary  string
	Errors   int
	Warnings int
}

// Store defines the persistence layer for runs and events.
type Store interface {
	// StartRun creates a new run for the given task name.
	StartRun(ctx context.Context, task string) (*Run, error)

	// RecordEvent persists a single event.
	RecordEvent(ctx context.Context, event *Event) error

	// FinishRun stores the final summary and counters for a run.
	FinishRun(ctx context.Context, runID, summary string, errors, warnings int) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListEvents returns all events of a run in recording order.
	ListEvents(ctx context.Context, runID string) ([]Event, error)

	// Close releases resources.
	Close() error
}
