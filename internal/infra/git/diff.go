package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Diffs returns the structured diff of a worktree: tracked changes in diff
// order followed by untracked files in listing order.
//
// A missing worktree is an error. Every git subcommand failure after that is
// logged and treated as empty output, so one failing step never hides the
// results of the others.
func (c *Client) Diffs(ctx context.Context, worktreePath string) ([]domain.DiffFile, error) {
	info, err := os.Stat(worktreePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", worktreePath, domain.ErrWorktreeNotFound)
		}
		return nil, fmt.Errorf("stat worktree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", worktreePath, domain.ErrWorktreeNotFound)
	}
	taskID := filepath.Base(worktreePath)

	numstat, err := c.NumStat(ctx, worktreePath)
	if err != nil {
		c.logger.Warn(taskID, "git", fmt.Sprintf("numstat failed, counting from patches: %v", err))
	}
	stats := ParseNumstat(numstat)

	diff, err := c.UnifiedDiff(ctx, worktreePath)
	if err != nil {
		c.logger.Warn(taskID, "git", fmt.Sprintf("diff failed, tracked changes omitted: %v", err))
	}
	files := FormatTracked(diff, stats)

	untracked, err := c.ListUntracked(ctx, worktreePath)
	if err != nil {
		c.logger.Warn(taskID, "git", fmt.Sprintf("ls-files failed, untracked files omitted: %v", err))
	}
	for _, path := range untracked {
		if f, ok := c.untrackedDiff(ctx, worktreePath, path); ok {
			files = append(files, f)
		}
	}

	return files, nil
}

// untrackedDiff builds the DiffFile of one untracked file. ok is false when
// the file cannot be read as text and git produced no patch for it.
func (c *Client) untrackedDiff(ctx context.Context, worktreePath, path string) (domain.DiffFile, bool) {
	patch, err := c.NoIndexDiff(ctx, worktreePath, path)
	if err != nil {
		c.logger.Debug(filepath.Base(worktreePath), "git", fmt.Sprintf("no-index diff of %s failed: %v", path, err))
	}

	if patch == "" {
		content, readErr := os.ReadFile(filepath.Join(worktreePath, path))
		if readErr != nil || !utf8.Valid(content) {
			c.logger.Debug(filepath.Base(worktreePath), "git", fmt.Sprintf("skipping unreadable untracked file %s", path))
			return domain.DiffFile{}, false
		}
		patch = SynthesizeNewFilePatch(path, string(content))
	}

	f := domain.DiffFile{Path: path, Patch: trimTrailingNewline(patch)}
	f.Added, f.Removed = domain.CountChanges(f.Patch)
	return f, true
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}
