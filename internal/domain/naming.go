package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// BranchPrefix is prepended to a task ID to form its branch name.
const BranchPrefix = "task/"

// BranchName returns the branch name for a task.
// Format: task/<id>
func BranchName(taskID string) string {
	return BranchPrefix + taskID
}

// WorktreesDir returns the directory that holds all task worktrees.
func WorktreesDir(dataRoot string) string {
	return filepath.Join(dataRoot, "worktrees")
}

// WorktreePath returns the path to a worktree for a task.
func WorktreePath(dataRoot, taskID string) string {
	return filepath.Join(WorktreesDir(dataRoot), taskID)
}

// TaskLogPath returns the path to the task log file.
func TaskLogPath(dataRoot, taskID string) string {
	return filepath.Join(dataRoot, "logs", fmt.Sprintf("task-%s.log", taskID))
}

// GlobalLogPath returns the path to the global log file.
func GlobalLogPath(dataRoot string) string {
	return filepath.Join(dataRoot, "logs", "delegate.log")
}

// StorePath returns the path to the document store file.
func StorePath(dataRoot string) string {
	return filepath.Join(dataRoot, "store.json")
}

// EventsPath returns the path to the JSONL event log of a task.
func EventsPath(dataRoot, taskID string) string {
	return filepath.Join(dataRoot, "events", taskID+".jsonl")
}

// ValidateTaskID rejects IDs that cannot be used as both a path element
// and a branch name component.
func ValidateTaskID(taskID string) error {
	if taskID == "" || taskID == "." || taskID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	if strings.ContainsAny(taskID, "/\\ ~^:?*[") || strings.HasPrefix(taskID, "-") ||
		strings.HasSuffix(taskID, ".lock") || strings.Contains(taskID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	for _, r := range taskID {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
		}
	}
	return nil
}
