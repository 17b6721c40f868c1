package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
)

// ListTasksInput contains the parameters for listing tasks.
type ListTasksInput struct {
	Statuses []domain.Status // Only tasks in these statuses (empty = all)
}

// ListTasksOutput contains the result of listing tasks.
type ListTasksOutput struct {
	Tasks []*domain.Task // Tasks ordered by creation time
}

// ListTasks is the use case for listing tasks.
type ListTasks struct {
	tasks domain.TaskRepository
}

// NewListTasks creates a new ListTasks use case.
func NewListTasks(tasks domain.TaskRepository) *ListTasks {
	return &ListTasks{tasks: tasks}
}

// Execute lists tasks matching the input.
func (uc *ListTasks) Execute(_ context.Context, in ListTasksInput) (*ListTasksOutput, error) {
	tasks, err := uc.tasks.List()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(in.Statuses) == 0 {
		return &ListTasksOutput{Tasks: tasks}, nil
	}

	want := make(map[domain.Status]bool, len(in.Statuses))
	for _, s := range in.Statuses {
		want[s] = true
	}
	filtered := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if want[t.Status] {
			filtered = append(filtered, t)
		}
	}
	return &ListTasksOutput{Tasks: filtered}, nil
}
