// Package cli provides the command-line interface for git-delegate.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
)

// Command group IDs.
const (
	groupSetup = "setup"
	groupTask  = "task"
	groupAgent = "agent"
)

// echoLogger is a logger that can mirror its entries to the terminal.
type echoLogger interface {
	SetEcho(w io.Writer)
	SetLevel(level slog.Level)
}

// NewRootCommand creates the root command for git-delegate.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	var (
		output  string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "delegate",
		Short: "Delegate coding tasks to AI agents in isolated worktrees",
		Long: `git-delegate hands coding tasks to AI agent CLIs.

Every started task gets its own git worktree on a task/<id> branch, so
agents work in parallel without touching your checkout. Agent output is
recorded per process; follow-up messages continue the conversation with
the full transcript as context.

Data (tasks, processes, logs, worktrees) lives under $DELEGATE_DATA_DIR,
else $XDG_DATA_HOME/git-delegate, else ~/.local/share/git-delegate.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := parseFormat(output); err != nil {
				return err
			}

			if verbose && c != nil {
				if l, ok := c.Logger.(echoLogger); ok {
					l.SetLevel(slog.LevelDebug)
					l.SetEcho(cmd.ErrOrStderr())
				}
			}

			// Skip if container is nil (e.g. in tests)
			if c == nil || c.ConfigLoader == nil {
				return nil
			}

			cfg, err := c.ConfigLoader.Load()
			if err != nil {
				// Reported by `config show`
				return nil
			}
			for _, w := range cfg.Warnings {
				printWarning(cmd.ErrOrStderr(), w)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&output, "output", "o", string(formatText), "Output format: text, json or yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs to stderr")

	// Define command groups
	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupTask, Title: "Task Management:"},
		&cobra.Group{ID: groupAgent, Title: "Agent Processes:"},
	)

	// Setup commands
	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	// Task management commands
	newCmd := newNewCommand(c)
	newCmd.GroupID = groupTask

	listCmd := newListCommand(c)
	listCmd.GroupID = groupTask

	showCmd := newShowCommand(c)
	showCmd.GroupID = groupTask

	diffCmd := newDiffCommand(c)
	diffCmd.GroupID = groupTask

	completeCmd := newCompleteCommand(c)
	completeCmd.GroupID = groupTask

	cancelCmd := newCancelCommand(c)
	cancelCmd.GroupID = groupTask

	worktreeCmd := newWorktreeCommand(c)
	worktreeCmd.GroupID = groupTask

	// Agent commands
	startCmd := newStartCommand(c)
	startCmd.GroupID = groupAgent

	sendCmd := newSendCommand(c)
	sendCmd.GroupID = groupAgent

	psCmd := newPsCommand(c)
	psCmd.GroupID = groupAgent

	killCmd := newKillCommand(c)
	killCmd.GroupID = groupAgent

	logCmd := newLogCommand(c)
	logCmd.GroupID = groupAgent

	// Add subcommands
	root.AddCommand(
		configCmd,
		newCmd,
		listCmd,
		showCmd,
		diffCmd,
		completeCmd,
		cancelCmd,
		worktreeCmd,
		startCmd,
		sendCmd,
		psCmd,
		killCmd,
		logCmd,
	)

	return root
}
