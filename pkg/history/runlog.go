package history

import (
	"context"
	"log/slog"
)

// RunLog binds a Store to a single run. It satisfies the aggregator's
// RunRecorder contract: persistence failures are logged and swallowed so
// event recording stays infallible.
type RunLog struct {
	store  Store
	runID  string
	logger *slog.Logger
}

// NewRunLog creates a RunLog for the given run.
func NewRunLog(store Store, runID string, logger *slog.Logger) *RunLog {
	return &RunLog{store: store, runID: runID, logger: logger}
}

// Record persists one event of the bound run.
func (l *RunLog) Record(level, action, message string) {
	event := &Event{
		RunID:   l.runID,
		Level:   level,
		Action:  action,
		Message: message,
	}
	if err := l.store.RecordEvent(context.Background(), event); err != nil {
		l.logger.Error("record event", "run", l.runID, "error", err)
	}
}

// Finish stores the final summary and counters of the bound run.
func (l *RunLog) Finish(summary string, errors, warnings int) {
	if err := l.store.FinishRun(context.Background(), l.runID, summary, errors, warnings); err != nil {
		l.logger.Error("finish run", "run", l.runID, "error", err)
	}
}
