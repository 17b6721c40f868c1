package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// ShowLogsInput contains the parameters for showing a task's event log.
type ShowLogsInput struct {
	TaskID string // Task ID to show events for
	Lines  int    // Number of events to return from the end (0 = all)
}

// ShowLogsOutput contains the task's recorded events.
type ShowLogsOutput struct {
	Events  []domain.Event
	Skipped int // Unreadable lines in the log
}

// ShowLogs is the use case for viewing the recorded agent events of a task.
type ShowLogs struct {
	tasks  domain.TaskRepository
	events domain.EventLog
}

// NewShowLogs creates a new ShowLogs use case.
func NewShowLogs(tasks domain.TaskRepository, events domain.EventLog) *ShowLogs {
	return &ShowLogs{tasks: tasks, events: events}
}

// Execute reads the task's event log.
func (uc *ShowLogs) Execute(_ context.Context, in ShowLogsInput) (*ShowLogsOutput, error) {
	// Get task to verify it exists
	task, err := shared.GetTask(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}

	events, skipped, err := uc.events.ReadAll(task.ID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	// If lines is specified, keep only the last N events
	if in.Lines > 0 && len(events) > in.Lines {
		events = events[len(events)-in.Lines:]
	}

	return &ShowLogsOutput{Events: events, Skipped: skipped}, nil
}
