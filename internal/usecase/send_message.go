package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// SendMessageInput contains the parameters for sending a message to a task's agent.
type SendMessageInput struct {
	TaskID  string // Task ID (required)
	Message string // Message for the agent (required)
	Profile string // Profile override (optional)
	Model   string // Model override (optional)
}

// SendMessageOutput contains the result of sending a message.
type SendMessageOutput struct {
	ProcessID         string // Newly spawned process
	PreviousProcessID string // Process whose transcript was carried over, if any
}

// SendMessage continues the conversation of an in-progress task.
type SendMessage struct {
	tasks        domain.TaskRepository
	registry     domain.ProcessRegistry
	orchestrator *Orchestrator
	clock        domain.Clock
	logger       domain.Logger
}

// NewSendMessage creates a new SendMessage use case.
func NewSendMessage(
	tasks domain.TaskRepository,
	registry domain.ProcessRegistry,
	orchestrator *Orchestrator,
	clock domain.Clock,
	logger domain.Logger,
) *SendMessage {
	return &SendMessage{
		tasks:        tasks,
		registry:     registry,
		orchestrator: orchestrator,
		clock:        clock,
		logger:       logger,
	}
}

// Execute continues the task's latest process with the message. A task
// without any process gets a fresh one.
func (uc *SendMessage) Execute(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	msg, err := shared.ValidateMessage(in.Message)
	if err != nil {
		return nil, err
	}
	task, err := shared.GetTaskWithWorktree(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.IsActive() {
		return nil, fmt.Errorf("send to task %s (%s): %w", task.ID, task.Status, domain.ErrInvalidTransition)
	}

	var (
		processID string
		prevID    string
	)
	if latest := uc.registry.Latest(task.ID); latest != nil {
		prevID = latest.ID
		processID, err = uc.orchestrator.Continue(ctx, ContinueInput{
			ProcessID:    latest.ID,
			Message:      msg,
			WorktreePath: task.WorktreePath,
			Profile:      in.Profile,
			Model:        in.Model,
		})
	} else {
		profile := in.Profile
		if profile == "" {
			profile = task.Profile
		}
		processID, err = uc.orchestrator.Spawn(ctx, SpawnInput{
			TaskID:       task.ID,
			Message:      msg,
			WorktreePath: task.WorktreePath,
			Profile:      profile,
			Model:        in.Model,
		})
	}

	if processID != "" {
		task.LastProcessID = processID
		task.Updated = uc.clock.Now()
		if saveErr := uc.tasks.Save(task); saveErr != nil && err == nil {
			err = fmt.Errorf("save task: %w", saveErr)
		}
	}
	if err != nil {
		return nil, err
	}

	uc.logger.Info(task.ID, "task", fmt.Sprintf("message sent (process %s)", processID))
	return &SendMessageOutput{ProcessID: processID, PreviousProcessID: prevID}, nil
}
