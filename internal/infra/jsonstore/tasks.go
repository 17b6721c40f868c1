package jsonstore

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/runoshun/git-delegate/internal/domain"
)

const tasksCollection = "tasks"

// Tasks implements domain.TaskRepository on top of a Store.
type Tasks struct {
	store *Store
}

// Ensure Tasks implements TaskRepository.
var _ domain.TaskRepository = (*Tasks)(nil)

// NewTasks returns the task view of store.
func NewTasks(store *Store) *Tasks {
	return &Tasks{store: store}
}

// Get retrieves a task by ID. Returns nil if not found.
func (r *Tasks) Get(id string) (*domain.Task, error) {
	var task domain.Task
	ok, err := r.store.Get(tasksCollection, id, &task)
	if err != nil || !ok {
		return nil, err
	}
	task.ID = id
	return &task, nil
}

// List retrieves all tasks ordered by creation time, then ID.
func (r *Tasks) List() ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.store.scan(tasksCollection, func(key string, raw json.RawMessage) error {
		var t domain.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decode task %s: %w", key, err)
		}
		t.ID = key
		tasks = append(tasks, &t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(tasks, func(a, b *domain.Task) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return tasks, nil
}

// Save creates or updates a task.
func (r *Tasks) Save(task *domain.Task) error {
	if err := domain.ValidateTaskID(task.ID); err != nil {
		return err
	}
	return r.store.Set(tasksCollection, task.ID, task)
}

// Delete removes a task by ID.
func (r *Tasks) Delete(id string) error {
	return r.store.Delete(tasksCollection, id)
}

// NextID returns the next available task ID.
func (r *Tasks) NextID() (string, error) {
	n, err := r.store.NextSeq(tasksCollection)
	if err != nil {
		return "", fmt.Errorf("allocate task id: %w", err)
	}
	return strconv.Itoa(n), nil
}

// compareIDs orders numeric IDs numerically and everything else lexically.
func compareIDs(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na - nb
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
