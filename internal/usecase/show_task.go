package usecase

import (
	"context"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// ShowTaskInput contains the parameters for showing a task.
type ShowTaskInput struct {
	TaskID string // Task ID (required)
}

// ShowTaskOutput contains the task and its conversation.
type ShowTaskOutput struct {
	Task      *domain.Task
	Processes []*domain.AgentProcess // Continuation chain, oldest first
}

// ShowTask is the use case for displaying a task with its agent processes.
type ShowTask struct {
	tasks    domain.TaskRepository
	registry domain.ProcessRegistry
}

// NewShowTask creates a new ShowTask use case.
func NewShowTask(tasks domain.TaskRepository, registry domain.ProcessRegistry) *ShowTask {
	return &ShowTask{tasks: tasks, registry: registry}
}

// Execute returns the task and its processes ordered along the
// previous-process chain.
func (uc *ShowTask) Execute(_ context.Context, in ShowTaskInput) (*ShowTaskOutput, error) {
	task, err := shared.GetTask(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}
	return &ShowTaskOutput{
		Task:      task,
		Processes: domain.ProcessChain(uc.registry.GetByTask(task.ID)),
	}, nil
}
