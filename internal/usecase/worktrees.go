package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
)

// WorktreeEntry is one worktree directory and the task that owns it.
type WorktreeEntry struct {
	Task   *domain.Task `json:"task,omitempty" yaml:"task,omitempty"` // nil for orphaned directories
	TaskID string       `json:"task_id" yaml:"task_id"`
	Path   string       `json:"path" yaml:"path"`
}

// ListWorktreesInput contains the parameters for listing worktrees.
type ListWorktreesInput struct{}

// ListWorktreesOutput contains every worktree directory on disk.
type ListWorktreesOutput struct {
	Worktrees []WorktreeEntry
}

// ListWorktrees is the use case for listing worktree directories.
type ListWorktrees struct {
	tasks     domain.TaskRepository
	worktrees domain.WorktreeManager
}

// NewListWorktrees creates a new ListWorktrees use case.
func NewListWorktrees(tasks domain.TaskRepository, worktrees domain.WorktreeManager) *ListWorktrees {
	return &ListWorktrees{tasks: tasks, worktrees: worktrees}
}

// Execute lists worktree directories with their owning tasks.
func (uc *ListWorktrees) Execute(_ context.Context, _ ListWorktreesInput) (*ListWorktreesOutput, error) {
	ids, err := uc.worktrees.List()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	entries := make([]WorktreeEntry, 0, len(ids))
	for _, id := range ids {
		task, err := uc.tasks.Get(id)
		if err != nil {
			return nil, fmt.Errorf("get task: %w", err)
		}
		entries = append(entries, WorktreeEntry{Task: task, TaskID: id, Path: uc.worktrees.Path(id)})
	}
	return &ListWorktreesOutput{Worktrees: entries}, nil
}

// RemoveWorktreeInput contains the parameters for removing a worktree.
type RemoveWorktreeInput struct {
	TaskID string // Task ID whose worktree is removed (required)
}

// RemoveWorktreeOutput contains the result of removing a worktree.
type RemoveWorktreeOutput struct {
	Path string // Removed directory
}

// RemoveWorktree is the use case for deleting a task's worktree without
// changing the task's status. Directories left behind by deleted tasks can
// be removed too.
type RemoveWorktree struct {
	tasks     domain.TaskRepository
	worktrees domain.WorktreeManager
	clock     domain.Clock
	logger    domain.Logger
}

// NewRemoveWorktree creates a new RemoveWorktree use case.
func NewRemoveWorktree(
	tasks domain.TaskRepository,
	worktrees domain.WorktreeManager,
	clock domain.Clock,
	logger domain.Logger,
) *RemoveWorktree {
	return &RemoveWorktree{tasks: tasks, worktrees: worktrees, clock: clock, logger: logger}
}

// Execute removes the worktree. Removing a missing worktree succeeds.
func (uc *RemoveWorktree) Execute(ctx context.Context, in RemoveWorktreeInput) (*RemoveWorktreeOutput, error) {
	if err := domain.ValidateTaskID(in.TaskID); err != nil {
		return nil, err
	}
	task, err := uc.tasks.Get(in.TaskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	path := uc.worktrees.Path(in.TaskID)
	repoPath := ""
	if task != nil {
		repoPath = task.RepoPath
		if task.HasWorktree() {
			path = task.WorktreePath
		}
	}

	if err := uc.worktrees.Remove(ctx, path, repoPath); err != nil {
		return nil, fmt.Errorf("remove worktree: %w", err)
	}

	if task != nil && task.HasWorktree() {
		task.WorktreePath = ""
		task.Branch = ""
		task.Updated = uc.clock.Now()
		if err := uc.tasks.Save(task); err != nil {
			return nil, fmt.Errorf("save task: %w", err)
		}
	}
	uc.logger.Info(in.TaskID, "worktree", "removed "+path)
	return &RemoveWorktreeOutput{Path: path}, nil
}
