// Package worktree manages per-task git worktrees under the data root.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Client manages the task → {branch, directory} mapping.
// Mutations for the same task ID are serialized; different tasks proceed in parallel.
type Client struct {
	git         domain.Git
	logger      domain.Logger
	locks       map[string]*sync.Mutex
	worktreeDir string // Directory where worktrees are created (<root>/worktrees)
	mu          sync.Mutex
}

// NewClient creates a new worktree client rooted at dataRoot.
func NewClient(git domain.Git, logger domain.Logger, dataRoot string) *Client {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Client{
		git:         git,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		worktreeDir: domain.WorktreesDir(dataRoot),
	}
}

// Ensure Client implements domain.WorktreeManager interface.
var _ domain.WorktreeManager = (*Client)(nil)

// lock acquires the mutex of a task and returns its release function.
func (c *Client) lock(taskID string) func() {
	c.mu.Lock()
	m, ok := c.locks[taskID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[taskID] = m
	}
	c.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Create creates a fresh worktree for taskID on a new task/<id> branch rooted
// at the current HEAD of repoPath.
//
// An existing directory for the task is removed first, together with its
// branch, so the result never reuses old contents. If materializing the
// worktree fails the new branch is deleted again.
func (c *Client) Create(ctx context.Context, taskID, repoPath string) (*domain.Worktree, error) {
	if err := domain.ValidateTaskID(taskID); err != nil {
		return nil, err
	}
	unlock := c.lock(taskID)
	defer unlock()

	path := filepath.Join(c.worktreeDir, taskID)
	branch := domain.BranchName(taskID)

	if _, err := os.Stat(path); err == nil {
		c.logger.Info(taskID, "worktree", fmt.Sprintf("removing existing worktree %s", path))
		if err := c.remove(ctx, path, repoPath); err != nil {
			return nil, fmt.Errorf("clean existing worktree: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat worktree: %w", err)
	}

	if err := c.git.CreateBranch(repoPath, branch); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.worktreeDir, 0o750); err != nil {
		c.rollbackBranch(taskID, repoPath, branch)
		return nil, fmt.Errorf("create worktrees directory: %w", err)
	}

	if err := c.git.AddWorktree(ctx, repoPath, path, branch); err != nil {
		c.rollbackBranch(taskID, repoPath, branch)
		return nil, err
	}

	c.logger.Info(taskID, "worktree", fmt.Sprintf("created worktree %s on %s", path, branch))
	return &domain.Worktree{TaskID: taskID, Branch: branch, Path: path}, nil
}

func (c *Client) rollbackBranch(taskID, repoPath, branch string) {
	if err := c.git.DeleteBranch(repoPath, branch); err != nil {
		c.logger.Warn(taskID, "worktree", fmt.Sprintf("rollback: delete branch %s: %v", branch, err))
	}
}

// Remove deletes the worktree at worktreePath. A missing path is a no-op.
// Branch deletion and worktree pruning are best-effort; failure to delete the
// directory is returned.
func (c *Client) Remove(ctx context.Context, worktreePath, repoPath string) error {
	unlock := c.lock(filepath.Base(worktreePath))
	defer unlock()
	return c.remove(ctx, worktreePath, repoPath)
}

func (c *Client) remove(ctx context.Context, worktreePath, repoPath string) error {
	if _, err := os.Lstat(worktreePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	taskID := filepath.Base(worktreePath)

	// Deleted as a plain ref; the worktree checkout does not block it.
	branch := domain.BranchName(taskID)
	if err := c.git.DeleteBranch(repoPath, branch); err != nil {
		c.logger.Warn(taskID, "worktree", fmt.Sprintf("delete branch %s: %v", branch, err))
	}

	if err := os.RemoveAll(worktreePath); err != nil {
		return fmt.Errorf("remove worktree directory: %w", err)
	}

	if err := c.git.PruneWorktrees(ctx, repoPath); err != nil {
		c.logger.Warn(taskID, "worktree", fmt.Sprintf("prune worktrees: %v", err))
	}

	c.logger.Info(taskID, "worktree", fmt.Sprintf("removed worktree %s", worktreePath))
	return nil
}

// List returns the task IDs that currently have a worktree directory.
// Non-directory entries are ignored.
func (c *Client) List() ([]string, error) {
	entries, err := os.ReadDir(c.worktreeDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read worktrees directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Path returns the deterministic worktree path of a task.
func (c *Client) Path(taskID string) string {
	return filepath.Join(c.worktreeDir, taskID)
}
