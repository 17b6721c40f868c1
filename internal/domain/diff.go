package domain

import "strings"

// DiffFile is the change set of a single file inside a worktree.
// Fields are ordered to minimize memory padding.
type DiffFile struct {
	Path    string `json:"path" yaml:"path"`
	Patch   string `json:"patch" yaml:"patch"`
	Added   int    `json:"added" yaml:"added"`
	Removed int    `json:"removed" yaml:"removed"`
}

// CountChanges counts added and removed lines inside the hunks of a unified
// diff. Header lines (diff --git, index, ---, +++, mode lines) and hunk
// headers are never counted.
func CountChanges(patch string) (added, removed int) {
	inHunk := false
	for line := range strings.SplitSeq(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk:
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// DiffTotals sums the per-file counts.
func DiffTotals(files []DiffFile) (added, removed int) {
	for _, f := range files {
		added += f.Added
		removed += f.Removed
	}
	return added, removed
}
