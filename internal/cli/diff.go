package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// newDiffCommand creates the diff command.
func newDiffCommand(c *app.Container) *cobra.Command {
	var stat bool

	cmd := &cobra.Command{
		Use:   "diff <id>",
		Short: "Show the changes in a task's worktree",
		Long: `Show the uncommitted changes of a task's worktree against its HEAD,
one block per file. Untracked files are shown as added in full.

Examples:
  delegate diff 1
  delegate diff 1 --stat
  delegate diff 1 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.ShowDiffUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowDiffInput{TaskID: parseTaskID(args[0])})
			if err != nil {
				return err
			}

			if ok, err := printStructured(cmd, out.Files); ok {
				return err
			}
			w := cmd.OutOrStdout()
			if len(out.Files) == 0 {
				_, _ = fmt.Fprintln(w, "No changes")
				return nil
			}
			if stat {
				printDiffStat(w, out)
				return nil
			}
			for _, f := range out.Files {
				_, _ = fmt.Fprintln(w, styleBold.Render(f.Path)+" "+renderChanges(f.Added, f.Removed))
				printPatch(w, f.Patch)
				_, _ = fmt.Fprintln(w)
			}
			_, _ = fmt.Fprintf(w, "%d files changed, %s\n", len(out.Files), renderChanges(out.Added, out.Removed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stat, "stat", false, "Show only per-file line counts")

	return cmd
}

// printDiffStat prints one "path +a -r" line per file and a total.
func printDiffStat(w io.Writer, out *usecase.ShowDiffOutput) {
	width := 0
	for _, f := range out.Files {
		width = max(width, len(f.Path))
	}
	for _, f := range out.Files {
		_, _ = fmt.Fprintf(w, " %-*s  %s\n", width, f.Path, renderChanges(f.Added, f.Removed))
	}
	_, _ = fmt.Fprintf(w, "%d files changed, %s\n", len(out.Files), renderChanges(out.Added, out.Removed))
}

// printPatch colors added and removed lines of a unified diff.
func printPatch(w io.Writer, patch string) {
	for _, line := range strings.Split(strings.TrimRight(patch, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			line = styleMuted.Render(line)
		case strings.HasPrefix(line, "+"):
			line = styleAdded.Render(line)
		case strings.HasPrefix(line, "-"):
			line = styleRemoved.Render(line)
		case strings.HasPrefix(line, "@@"):
			line = styleRunning.Render(line)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
