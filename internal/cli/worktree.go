package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// newWorktreeCommand creates the worktree command.
func newWorktreeCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Manage task worktrees",
		Long:  `List and remove the worktree directories under the data root.`,
		// No RunE: shows subcommand list when called without arguments
	}

	cmd.AddCommand(newWorktreeListCommand(c))
	cmd.AddCommand(newWorktreeRemoveCommand(c))

	return cmd
}

// newWorktreeListCommand creates the worktree ls subcommand.
func newWorktreeListCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List worktree directories",
		Long: `List every worktree directory on disk with the task that owns it.
Directories whose task no longer exists are shown as orphaned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			uc := c.ListWorktreesUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ListWorktreesInput{})
			if err != nil {
				return err
			}

			entries := out.Worktrees
			if entries == nil {
				entries = []usecase.WorktreeEntry{}
			}
			if ok, err := printStructured(cmd, entries); ok {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			defer func() { _ = tw.Flush() }()
			_, _ = fmt.Fprintln(tw, "TASK\tSTATUS\tPATH")
			for _, e := range entries {
				status := styleWarning.Render("orphaned")
				if e.Task != nil {
					status = renderTaskStatus(e.Task.Status)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.TaskID, status, e.Path)
			}
			return nil
		},
	}
	return cmd
}

// newWorktreeRemoveCommand creates the worktree rm subcommand.
func newWorktreeRemoveCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a task's worktree and branch",
		Long: `Remove the worktree directory of a task and delete its task/<id> branch.
The task's status is left unchanged. Removing a missing worktree succeeds.

Examples:
  delegate worktree rm 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.RemoveWorktreeUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.RemoveWorktreeInput{TaskID: parseTaskID(args[0])})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", out.Path)
			return nil
		},
	}
	return cmd
}
