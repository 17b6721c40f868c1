package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// CloseTaskInput contains the parameters for closing a task.
type CloseTaskInput struct {
	TaskID string        // Task ID to close
	Status domain.Status // StatusCompleted or StatusCancelled
}

// CloseTaskOutput contains the result of closing a task.
type CloseTaskOutput struct {
	Task   *domain.Task // The closed task
	Killed []string     // Processes that were still running
}

// CloseTask is the use case for completing or cancelling a task.
type CloseTask struct {
	tasks        domain.TaskRepository
	worktrees    domain.WorktreeManager
	registry     domain.ProcessRegistry
	orchestrator *Orchestrator
	clock        domain.Clock
	logger       domain.Logger
}

// NewCloseTask creates a new CloseTask use case.
func NewCloseTask(
	tasks domain.TaskRepository,
	worktrees domain.WorktreeManager,
	registry domain.ProcessRegistry,
	orchestrator *Orchestrator,
	clock domain.Clock,
	logger domain.Logger,
) *CloseTask {
	return &CloseTask{
		tasks:        tasks,
		worktrees:    worktrees,
		registry:     registry,
		orchestrator: orchestrator,
		clock:        clock,
		logger:       logger,
	}
}

// Execute closes a task.
// Processing:
//   - Kill every running process of the task
//   - Remove the worktree and its branch
//   - Move the task to the requested terminal status
func (uc *CloseTask) Execute(ctx context.Context, in CloseTaskInput) (*CloseTaskOutput, error) {
	if in.Status != domain.StatusCompleted && in.Status != domain.StatusCancelled {
		return nil, fmt.Errorf("close task as %s: %w", in.Status, domain.ErrInvalidTransition)
	}
	task, err := shared.GetTask(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.CanTransitionTo(in.Status) {
		return nil, fmt.Errorf("cannot move task %s from %s to %s: %w", task.ID, task.Status, in.Status, domain.ErrInvalidTransition)
	}

	var killed []string
	for _, p := range uc.registry.GetByTask(task.ID) {
		if p.Status != domain.ProcessRunning {
			continue
		}
		if err := uc.orchestrator.Kill(p.ID); err != nil && !errors.Is(err, domain.ErrInvalidProcessStatus) {
			uc.logger.Warn(task.ID, "agent", fmt.Sprintf("kill %s: %v", p.ID, err))
			continue
		}
		killed = append(killed, p.ID)
	}

	if task.HasWorktree() {
		if err := uc.worktrees.Remove(ctx, task.WorktreePath, task.RepoPath); err != nil {
			return nil, fmt.Errorf("remove worktree: %w", err)
		}
		task.WorktreePath = ""
		task.Branch = ""
	}

	task.Status = in.Status
	task.Updated = uc.clock.Now()
	if err := uc.tasks.Save(task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	uc.logger.Info(task.ID, "task", fmt.Sprintf("closed as %s", in.Status))
	return &CloseTaskOutput{Task: task, Killed: killed}, nil
}
