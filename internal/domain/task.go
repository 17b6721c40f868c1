package domain

import "time"

// Task represents a unit of work delegated to an agent.
// Fields are ordered to minimize memory padding.
type Task struct {
	Created       time.Time `json:"created" yaml:"created"`
	Updated       time.Time `json:"updated" yaml:"updated"`
	ID            string    `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	RepoPath      string    `json:"repo_path" yaml:"repo_path"`
	Profile       string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	Status        Status    `json:"status" yaml:"status"`
	Branch        string    `json:"branch,omitempty" yaml:"branch,omitempty"`
	WorktreePath  string    `json:"worktree_path,omitempty" yaml:"worktree_path,omitempty"`
	LastProcessID string    `json:"last_process_id,omitempty" yaml:"last_process_id,omitempty"`
}

// Prompt returns the opening message sent to the agent when the task starts.
// extra is appended on its own paragraph when non-empty.
func (t *Task) Prompt(extra string) string {
	p := t.Title
	if t.Description != "" {
		p += "\n\n" + t.Description
	}
	if extra != "" {
		p += "\n\n" + extra
	}
	return p
}

// HasWorktree reports whether the task currently references a worktree.
func (t *Task) HasWorktree() bool {
	return t.WorktreePath != ""
}

// Worktree is the task → {branch, directory} mapping realized on disk.
type Worktree struct {
	TaskID string `json:"task_id" yaml:"task_id"`
	Branch string `json:"branch" yaml:"branch"`
	Path   string `json:"path" yaml:"path"`
}
