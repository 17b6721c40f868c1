package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/runoshun/git-delegate/internal/domain"
)

// FileSink appends events as JSON lines to <root>/events/<task-id>.jsonl.
type FileSink struct {
	dataRoot string
	mu       sync.Mutex
}

// NewFileSink creates a sink writing under dataRoot.
func NewFileSink(dataRoot string) *FileSink {
	return &FileSink{dataRoot: dataRoot}
}

// Write appends ev to its task's event log.
func (s *FileSink) Write(ev domain.Event) error {
	if ev.TaskID == "" {
		return nil
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := domain.EventsPath(s.dataRoot, ev.TaskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create events dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// FileReader reads a task's event log.
type FileReader struct {
	dataRoot string
}

// Ensure FileReader implements domain.EventLog interface.
var _ domain.EventLog = (*FileReader)(nil)

// NewFileReader creates a reader for event logs under dataRoot.
func NewFileReader(dataRoot string) *FileReader {
	return &FileReader{dataRoot: dataRoot}
}

// ReadAll returns the task's events in write order and the number of
// malformed lines skipped. A missing log yields no events.
func (r *FileReader) ReadAll(taskID string) ([]domain.Event, int, error) {
	file, err := os.Open(domain.EventsPath(r.dataRoot, taskID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []domain.Event
	var skipped int
	scanner := bufio.NewScanner(file)

	// Start with default buffer, allow up to 1MB for large JSON lines
	const (
		initialBufSize = 64 * 1024   // 64KB
		maxLineSize    = 1024 * 1024 // 1MB
	)
	scanner.Buffer(make([]byte, initialBufSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan events file: %w", err)
	}
	return events, skipped, nil
}
