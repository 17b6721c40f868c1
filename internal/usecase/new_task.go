// Package usecase contains application use cases.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// NewTaskInput contains the parameters for creating a new task.
type NewTaskInput struct {
	Title       string // Task title (required)
	Description string // Task description (optional)
	RepoDir     string // Any directory inside the source repository (required)
	Profile     string // Agent profile (optional, empty = configured default)
}

// NewTaskOutput contains the result of creating a new task.
type NewTaskOutput struct {
	Task *domain.Task // The created task
}

// NewTask is the use case for creating a new task.
type NewTask struct {
	tasks  domain.TaskRepository
	git    domain.Git
	clock  domain.Clock
	logger domain.Logger
}

// NewNewTask creates a new NewTask use case.
func NewNewTask(tasks domain.TaskRepository, git domain.Git, clock domain.Clock, logger domain.Logger) *NewTask {
	return &NewTask{
		tasks:  tasks,
		git:    git,
		clock:  clock,
		logger: logger,
	}
}

// Execute creates a new task with the given input.
func (uc *NewTask) Execute(_ context.Context, in NewTaskInput) (*NewTaskOutput, error) {
	// Validate title
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}

	// Resolve the repository the task works on
	repoPath, err := uc.git.RepoRoot(in.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("resolve repository: %w", err)
	}

	// Get next task ID
	id, err := uc.tasks.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate task ID: %w", err)
	}

	now := uc.clock.Now()
	task := &domain.Task{
		ID:          id,
		Title:       title,
		Description: in.Description,
		RepoPath:    repoPath,
		Profile:     in.Profile,
		Status:      domain.StatusTodo,
		Created:     now,
		Updated:     now,
	}

	// Save task
	if err := uc.tasks.Save(task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	// Log task creation
	if uc.logger != nil {
		uc.logger.Info(id, "task", fmt.Sprintf("created: %q in %s", title, repoPath))
	}

	return &NewTaskOutput{Task: task}, nil
}
