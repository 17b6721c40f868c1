package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// ShowDiffInput contains the parameters for showing a task diff.
type ShowDiffInput struct {
	TaskID string // Task ID (required)
}

// ShowDiffOutput contains the per-file changes of the task's worktree.
type ShowDiffOutput struct {
	WorktreePath string
	Files        []domain.DiffFile // Tracked changes in diff order, then untracked files
	Added        int               // Sum of added lines
	Removed      int               // Sum of removed lines
}

// ShowDiff is the use case for displaying task changes.
type ShowDiff struct {
	tasks  domain.TaskRepository
	differ domain.Differ
}

// NewShowDiff creates a new ShowDiff use case.
func NewShowDiff(tasks domain.TaskRepository, differ domain.Differ) *ShowDiff {
	return &ShowDiff{tasks: tasks, differ: differ}
}

// Execute computes the diff of the task's worktree against its HEAD.
func (uc *ShowDiff) Execute(ctx context.Context, in ShowDiffInput) (*ShowDiffOutput, error) {
	task, err := shared.GetTaskWithWorktree(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}

	files, err := uc.differ.Diffs(ctx, task.WorktreePath)
	if err != nil {
		return nil, fmt.Errorf("diff worktree: %w", err)
	}
	added, removed := domain.DiffTotals(files)
	return &ShowDiffOutput{
		WorktreePath: task.WorktreePath,
		Files:        files,
		Added:        added,
		Removed:      removed,
	}, nil
}
