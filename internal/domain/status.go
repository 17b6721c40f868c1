package domain

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"        // Created, awaiting start
	StatusInProgress Status = "in_progress" // Worktree live, agent working
	StatusCompleted  Status = "completed"   // Work accepted, worktree removed
	StatusCancelled  Status = "cancelled"   // Work abandoned, worktree removed
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{
		StatusTodo,
		StatusInProgress,
		StatusCompleted,
		StatusCancelled,
	}
}

// transitions defines the allowed status transitions.
// Flow: todo → in_progress → completed
//
//	└──────────┴──────→ cancelled
var transitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsActive reports whether a task in this status owns a live worktree.
func (s Status) IsActive() bool {
	return s == StatusInProgress
}

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Display returns a human-readable representation of the status.
func (s Status) Display() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
