// Package git provides git operations.
//
// Repository and branch operations go through go-git. Commands whose output
// format is consumed verbatim (diffs, listings) and linked worktree creation,
// which go-git does not implement, run the git CLI.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Client provides git operations.
type Client struct {
	runner domain.CommandRunner
	logger domain.Logger
	binary string // git executable
}

// NewClient creates a new git client.
func NewClient(runner domain.CommandRunner, logger domain.Logger) *Client {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Client{
		runner: runner,
		logger: logger,
		binary: "git",
	}
}

// Ensure Client implements the domain git ports.
var (
	_ domain.Git    = (*Client)(nil)
	_ domain.Differ = (*Client)(nil)
)

// openRepository opens the repository at path, following linked worktrees
// to their common directory.
func openRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotGitRepository)
		}
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return repo, nil
}

// FindRepoRoot returns the top-level working directory of the repository
// containing dir.
func FindRepoRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", domain.ErrNotGitRepository
		}
		return "", fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("resolve working tree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

// RepoRoot implements domain.Git using FindRepoRoot.
func (c *Client) RepoRoot(dir string) (string, error) {
	return FindRepoRoot(dir)
}

// CreateBranch creates branch at the current HEAD commit of repoPath.
func (c *Client) CreateBranch(repoPath, branch string) error {
	repo, err := openRepository(repoPath)
	if err != nil {
		return err
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("%s: %w", repoPath, domain.ErrNoHead)
		}
		return fmt.Errorf("resolve HEAD: %w", err)
	}

	name := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(name, false); err == nil {
		return fmt.Errorf("%s: %w", branch, domain.ErrBranchExists)
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("check branch %s: %w", branch, err)
	}

	if err := repo.Storer.SetReference(plumbing.NewHashReference(name, head.Hash())); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

// DeleteBranch deletes branch from repoPath. A missing branch is not an error.
func (c *Client) DeleteBranch(repoPath, branch string) error {
	repo, err := openRepository(repoPath)
	if err != nil {
		return err
	}
	if err := repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(branch)); err != nil {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return nil
}

// AddWorktree runs `git worktree add <path> <branch>` in repoPath.
// A stale registration left by a deleted directory is pruned and the add retried.
func (c *Client) AddWorktree(ctx context.Context, repoPath, path, branch string) error {
	out, err := c.combined(ctx, repoPath, "worktree", "add", path, branch)
	if err == nil {
		return nil
	}
	if !strings.Contains(out, "already registered") {
		return fmt.Errorf("create worktree: %w: %s", err, strings.TrimSpace(out))
	}

	if pruneErr := c.PruneWorktrees(ctx, repoPath); pruneErr != nil {
		return fmt.Errorf("prune stale worktrees: %w", pruneErr)
	}
	out, err = c.combined(ctx, repoPath, "worktree", "add", path, branch)
	if err != nil {
		return fmt.Errorf("create worktree after prune: %w: %s", err, strings.TrimSpace(out))
	}
	return nil
}

// PruneWorktrees removes stale worktree entries of repoPath.
func (c *Client) PruneWorktrees(ctx context.Context, repoPath string) error {
	out, err := c.combined(ctx, repoPath, "worktree", "prune")
	if err != nil {
		return fmt.Errorf("prune worktrees: %w: %s", err, strings.TrimSpace(out))
	}
	return nil
}

// NumStat returns per-file added/removed counts of unstaged tracked changes.
func (c *Client) NumStat(ctx context.Context, dir string) (string, error) {
	return c.output(ctx, dir, "diff", "--numstat")
}

// UnifiedDiff returns the unified diff of unstaged tracked changes.
func (c *Client) UnifiedDiff(ctx context.Context, dir string) (string, error) {
	return c.output(ctx, dir, "diff", "--unified=3", "--no-color")
}

// NoIndexDiff diffs relPath against the null device, producing a new-file patch.
// git exits 1 whenever the inputs differ, so that status is not an error.
func (c *Client) NoIndexDiff(ctx context.Context, dir, relPath string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, dir, c.binary,
		"diff", "--no-index", "--unified=3", "--no-color", os.DevNull, relPath)
	if err != nil && len(stdout) == 0 {
		return "", fmt.Errorf("git diff --no-index %s: %w: %s", relPath, err, strings.TrimSpace(string(stderr)))
	}
	return string(stdout), nil
}

// ListUntracked returns untracked files of dir, honouring ignore rules.
func (c *Client) ListUntracked(ctx context.Context, dir string) ([]string, error) {
	out, err := c.output(ctx, dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	var files []string
	for line := range strings.SplitSeq(out, "\n") {
		if line == "" {
			continue
		}
		files = append(files, unquotePath(line))
	}
	return files, nil
}

// output runs a git subcommand and returns stdout, or an error carrying stderr.
func (c *Client) output(ctx context.Context, dir string, args ...string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, dir, c.binary, args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(string(stderr)))
	}
	return string(stdout), nil
}

// combined runs a git subcommand and returns stdout and stderr joined.
func (c *Client) combined(ctx context.Context, dir string, args ...string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, dir, c.binary, args...)
	return string(stdout) + string(stderr), err
}
