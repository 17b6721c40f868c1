// Package logging provides file-based logging for git-delegate.
// Entries go to a global log (<root>/logs/delegate.log) and, when scoped to
// a task, to that task's log (<root>/logs/task-<id>.log).
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger fans entries out to slog text handlers, one per log file.
// Files are opened lazily on first write.
type Logger struct {
	level    *slog.LevelVar
	global   *slog.Logger
	echo     *slog.Logger
	tasks    map[string]*slog.Logger
	dataRoot string
	files    []*os.File
	mu       sync.Mutex
}

// New creates a Logger that writes under dataRoot/logs.
// An empty dataRoot disables file output.
func New(dataRoot string, level slog.Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return &Logger{
		level:    lv,
		dataRoot: dataRoot,
		tasks:    make(map[string]*slog.Logger),
	}
}

// ParseLevel parses a level name ("debug", "info", "warn", "error").
// Unknown names select info.
func ParseLevel(s string) slog.Level {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lv
}

// SetLevel changes the minimum level of every destination.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// SetEcho mirrors every entry to w. A nil w disables mirroring.
func (l *Logger) SetEcho(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		l.echo = nil
		return
	}
	l.echo = l.newLogger(w)
}

func (l *Logger) newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level}))
}

func (l *Logger) open(path string) (*slog.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.files = append(l.files, f)
	return l.newLogger(f), nil
}

// targets returns the loggers an entry for taskID is written to.
// Files that cannot be opened are skipped.
func (l *Logger) targets(taskID string) []*slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*slog.Logger
	if l.echo != nil {
		out = append(out, l.echo)
	}
	if l.dataRoot == "" {
		return out
	}

	if l.global == nil {
		if lg, err := l.open(domain.GlobalLogPath(l.dataRoot)); err == nil {
			l.global = lg
		}
	}
	if l.global != nil {
		out = append(out, l.global)
	}

	if taskID == "" {
		return out
	}
	lg, ok := l.tasks[taskID]
	if !ok {
		var err error
		if lg, err = l.open(domain.TaskLogPath(l.dataRoot, taskID)); err != nil {
			return out
		}
		l.tasks[taskID] = lg
	}
	return append(out, lg)
}

func (l *Logger) log(level slog.Level, taskID, category, msg string) {
	if level < l.level.Level() {
		return
	}

	attrs := []slog.Attr{slog.String("category", category)}
	if taskID != "" {
		attrs = append(attrs, slog.String("task", taskID))
	}
	for _, lg := range l.targets(taskID) {
		lg.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// Info logs an info message.
func (l *Logger) Info(taskID, category, msg string) {
	l.log(slog.LevelInfo, taskID, category, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(taskID, category, msg string) {
	l.log(slog.LevelDebug, taskID, category, msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(taskID, category, msg string) {
	l.log(slog.LevelWarn, taskID, category, msg)
}

// Error logs an error message.
func (l *Logger) Error(taskID, category, msg string) {
	l.log(slog.LevelError, taskID, category, msg)
}

// Close closes all open log files. The Logger may be reused afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	l.global = nil
	clear(l.tasks)
	return errors.Join(errs...)
}
