package git

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// NumStat is one row of `git diff --numstat`.
type NumStat struct {
	Added   int
	Removed int
}

// ParseNumstat parses "added<TAB>removed<TAB>path" rows into a lookup keyed
// by path. Binary rows ("-") count as zero; renames are keyed by the new path.
func ParseNumstat(output string) map[string]NumStat {
	stats := make(map[string]NumStat)
	for line := range strings.SplitSeq(output, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}
		added, _ := strconv.Atoi(parts[0])
		removed, _ := strconv.Atoi(parts[1])
		stats[renameTarget(unquotePath(parts[2]))] = NumStat{Added: added, Removed: removed}
	}
	return stats
}

// renameTarget resolves numstat rename notation ("old => new" or
// "dir/{old => new}/file") to the new path.
func renameTarget(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}
	open := strings.Index(path, "{")
	closing := strings.LastIndex(path, "}")
	if open >= 0 && closing > open {
		inner := path[open+1 : closing]
		_, after, _ := strings.Cut(inner, " => ")
		joined := path[:open] + after + path[closing+1:]
		return strings.ReplaceAll(joined, "//", "/")
	}
	_, after, _ := strings.Cut(path, " => ")
	return after
}

// SplitFileBlocks splits unified diff output at each "diff --git" line.
// Text before the first header is dropped.
func SplitFileBlocks(diff string) []string {
	var blocks []string
	var current strings.Builder
	started := false

	for line := range strings.SplitSeq(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			if started {
				blocks = append(blocks, strings.TrimRight(current.String(), "\n"))
				current.Reset()
			}
			started = true
		}
		if !started {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if started {
		blocks = append(blocks, strings.TrimRight(current.String(), "\n"))
	}
	return blocks
}

// BlockPath returns the path a file block refers to: the "+++ b/" target, or
// the "--- a/" source for deletions. ok is false when neither marker exists.
func BlockPath(block string) (path string, ok bool) {
	var from string
	for line := range strings.SplitSeq(block, "\n") {
		if strings.HasPrefix(line, "@@") {
			break
		}
		if rest, found := strings.CutPrefix(line, "+++ "); found {
			if p, isB := stripSide(rest, "b/"); isB {
				return p, true
			}
		}
		if rest, found := strings.CutPrefix(line, "--- "); found {
			if p, isA := stripSide(rest, "a/"); isA {
				from = p
			}
		}
	}
	if from != "" {
		return from, true
	}
	return "", false
}

// stripSide removes the side prefix from a ---/+++ operand, handling quoting.
func stripSide(operand, prefix string) (string, bool) {
	operand = unquotePath(strings.TrimRight(operand, "\t"))
	if p, ok := strings.CutPrefix(operand, prefix); ok && p != "" {
		return p, true
	}
	return "", false
}

// unquotePath decodes a C-style quoted path as emitted by git for unusual names.
func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}

// FormatTracked converts unified diff output into DiffFiles in diff order,
// attaching counts from stats. Blocks without a path marker are discarded;
// blocks without a stats entry are counted from their own patch.
func FormatTracked(diff string, stats map[string]NumStat) []domain.DiffFile {
	var files []domain.DiffFile
	for _, block := range SplitFileBlocks(diff) {
		path, ok := BlockPath(block)
		if !ok {
			continue
		}
		f := domain.DiffFile{Path: path, Patch: block}
		if st, found := stats[path]; found {
			f.Added, f.Removed = st.Added, st.Removed
		} else {
			f.Added, f.Removed = domain.CountChanges(block)
		}
		files = append(files, f)
	}
	return files
}

// SynthesizeNewFilePatch builds a new-file patch for content in the same
// format as `git diff --no-index /dev/null <path>`.
func SynthesizeNewFilePatch(path, content string) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		lines = nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
	b.WriteString("new file mode 100644\n")
	b.WriteString("index 0000000..0000000\n")
	b.WriteString("--- /dev/null\n")
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@", len(lines))
	for _, line := range lines {
		b.WriteString("\n+")
		b.WriteString(line)
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n\\ No newline at end of file")
	}
	return b.String()
}
