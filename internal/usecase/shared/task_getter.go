// Package shared holds helpers used by several use cases.
package shared

import (
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
)

// GetTask retrieves a task by ID and returns domain.ErrTaskNotFound if not found.
// This centralizes the common pattern of:
//
//	task, err := repo.Get(taskID)
//	if err != nil { return nil, fmt.Errorf("get task: %w", err) }
//	if task == nil { return nil, domain.ErrTaskNotFound }
func GetTask(repo domain.TaskRepository, taskID string) (*domain.Task, error) {
	task, err := repo.Get(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
	}
	return task, nil
}

// GetTaskWithWorktree is GetTask for operations that act inside the task's
// worktree. It returns domain.ErrNoWorktree when the task has none.
func GetTaskWithWorktree(repo domain.TaskRepository, taskID string) (*domain.Task, error) {
	task, err := GetTask(repo, taskID)
	if err != nil {
		return nil, err
	}
	if !task.HasWorktree() {
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNoWorktree)
	}
	return task, nil
}
