package domain

import "errors"

// Domain errors.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrInvalidTaskID        = errors.New("invalid task id")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotGitRepository     = errors.New("not a git repository")
	ErrNoHead               = errors.New("cannot resolve HEAD (repository has no commits?)")
	ErrBranchExists         = errors.New("branch already exists")
	ErrWorktreeNotFound     = errors.New("worktree not found")
	ErrNoWorktree           = errors.New("task has no worktree")
	ErrProcessNotFound      = errors.New("agent process not found")
	ErrProfileNotFound      = errors.New("agent profile not found")
	ErrProfileDisabled      = errors.New("agent profile is disabled")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrEmptyTitle           = errors.New("title cannot be empty")
	ErrEmptyCommand         = errors.New("invocation has no command")
	ErrConfigExists         = errors.New("config file already exists")
	ErrInvalidProcessStatus = errors.New("invalid process status")
)
