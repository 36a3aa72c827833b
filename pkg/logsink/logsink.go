// Package logsink writes the per-run log file.
//
// Every run owns exactly one sink. Lines are plain text in the fixed format
//
//	DD/MM/YYYY HH:MM:SS AM/PM - LEVEL - message
//
// with levels INFO, WARNING, ERROR and CRITICAL. The sink is a thin slog
// front-end: a custom handler renders records into the line format above, so
// callers that already hold a *slog.Logger can log through the same file.
package logsink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimeFormat is the timestamp layout used for log lines and mail content.
const TimeFormat = "02/01/2006 03:04:05 PM"

// LevelCritical extends slog's built-in levels for unrecoverable setup
// failures.
const LevelCritical = slog.Level(12)

// Sink is a leveled, append-only log file for one run.
type Sink struct {
	path   string
	file   *os.File
	logger *slog.Logger
}

// New opens or creates the log file at path and appends to it.
func New(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Sink{
		path:   path,
		file:   f,
		logger: slog.New(&lineHandler{mu: &sync.Mutex{}, w: f}),
	}, nil
}

// DefaultPath returns a fresh per-run log file path under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "herald_"+time.Now().Format("20060102_150405")+".log")
}

// Info writes msg at INFO level.
func (s *Sink) Info(msg string) { s.logger.Info(msg) }

// Warning writes msg at WARNING level.
func (s *Sink) Warning(msg string) { s.logger.Warn(msg) }

// Error writes msg at ERROR level.
func (s *Sink) Error(msg string) { s.logger.Error(msg) }

// Critical writes msg at CRITICAL level.
func (s *Sink) Critical(msg string) {
	s.logger.Log(context.Background(), LevelCritical, msg)
}

// Logger exposes the underlying slog.Logger writing to the run log.
func (s *Sink) Logger() *slog.Logger { return s.logger }

// Filename returns the base name of the log file, e.g. for referencing it in
// a mail attachment.
func (s *Sink) Filename() string { return filepath.Base(s.path) }

// Path returns the full path of the log file.
func (s *Sink) Path() string { return s.path }

// Close flushes and closes the log file.
func (s *Sink) Close() error { return s.file.Close() }

// lineHandler renders slog records into the fixed line format. Attrs and
// groups are dropped: run-log lines carry their context in the message.
type lineHandler struct {
	mu *sync.Mutex
	w  io.Writer
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.w, "%s - %s - %s\n", r.Time.Format(TimeFormat), levelName(r.Level), r.Message)
	return err
}

func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(string) slog.Handler      { return h }

func levelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	default:
		return "INFO"
	}
}
