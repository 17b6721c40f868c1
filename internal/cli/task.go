package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// newNewCommand creates the new command for creating tasks.
func newNewCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Title       string
		Description string
		Repo        string
		Profile     string
	}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new task",
		Long: `Create a new task for an agent to work on.

The task is created with status 'todo' for the repository containing
--repo (default: the current directory). The worktree and branch are not
created until the task is started with 'delegate start <id>'.

Examples:
  # Create a task in the current repository
  delegate new --title "Add retry to the HTTP client"

  # Create a task with a description and a fixed agent profile
  delegate new --title "Fix flaky test" --body "TestServer_Shutdown fails on CI" --profile codex

  # Create a task for another repository
  delegate new --repo ~/src/api --title "Bump Go version"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := opts.Repo
			if repo == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get current directory: %w", err)
				}
				repo = cwd
			}

			uc := c.NewTaskUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.NewTaskInput{
				Title:       opts.Title,
				Description: opts.Description,
				RepoDir:     repo,
				Profile:     opts.Profile,
			})
			if err != nil {
				return err
			}

			if ok, err := printStructured(cmd, out.Task); ok {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task #%s: %s\n", out.Task.ID, out.Task.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "Task title (required)")
	cmd.Flags().StringVarP(&opts.Description, "body", "b", "", "Task description")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "Any directory inside the target repository (default: current directory)")
	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "Agent profile (default: configured default_profile)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

// newListCommand creates the list command for displaying tasks.
func newListCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Statuses []string
		All      bool
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `Display a list of tasks.

By default, completed and cancelled tasks are hidden.
Use --all to show every task, or --status to pick statuses.

Examples:
  # List open tasks
  delegate list

  # List everything
  delegate list --all

  # List only running tasks as JSON
  delegate list --status in_progress -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input := usecase.ListTasksInput{}
			for _, s := range opts.Statuses {
				status := domain.Status(s)
				if !status.IsValid() {
					return fmt.Errorf("invalid status %q", s)
				}
				input.Statuses = append(input.Statuses, status)
			}
			if len(input.Statuses) == 0 && !opts.All {
				input.Statuses = []domain.Status{domain.StatusTodo, domain.StatusInProgress}
			}

			uc := c.ListTasksUseCase()
			out, err := uc.Execute(cmd.Context(), input)
			if err != nil {
				return err
			}

			tasks := out.Tasks
			if tasks == nil {
				tasks = []*domain.Task{}
			}
			if ok, err := printStructured(cmd, tasks); ok {
				return err
			}
			printTaskList(cmd.OutOrStdout(), tasks, c.Clock)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Statuses, "status", "s", nil, "Show only tasks in this status (repeatable)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Show all tasks including completed and cancelled")

	return cmd
}

// printTaskList prints tasks as an aligned table.
func printTaskList(w io.Writer, tasks []*domain.Task, clock domain.Clock) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	// Header
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPROFILE\tAGE\tTITLE")

	for _, task := range tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			renderTaskStatus(task.Status),
			orDash(task.Profile),
			formatDuration(clock.Now().Sub(task.Created)),
			task.Title,
		)
	}
}

// newShowCommand creates the show command for displaying task details.
func newShowCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Display task details and conversation",
		Long: `Display a task and the conversation of its agent processes.

Processes are listed along their continuation chain, oldest first.

Examples:
  delegate show 1
  delegate show 1 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.ShowTaskUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowTaskInput{TaskID: parseTaskID(args[0])})
			if err != nil {
				return err
			}

			type structuredTask struct {
				Task      *domain.Task           `json:"task" yaml:"task"`
				Processes []*domain.AgentProcess `json:"processes" yaml:"processes"`
			}
			if ok, err := printStructured(cmd, structuredTask{Task: out.Task, Processes: out.Processes}); ok {
				return err
			}
			printTaskDetails(cmd.OutOrStdout(), out)
			return nil
		},
	}
	return cmd
}

// printTaskDetails prints task details in a formatted output.
func printTaskDetails(w io.Writer, out *usecase.ShowTaskOutput) {
	task := out.Task

	// Header
	_, _ = fmt.Fprintln(w, styleBold.Render(fmt.Sprintf("# Task %s: %s", task.ID, task.Title)))
	_, _ = fmt.Fprintln(w)

	// Description
	if task.Description != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", task.Description)
	}

	// Fields
	_, _ = fmt.Fprintf(w, "Status: %s\n", task.Status.Display())
	_, _ = fmt.Fprintf(w, "Repository: %s\n", task.RepoPath)
	_, _ = fmt.Fprintf(w, "Profile: %s\n", orDash(task.Profile))
	if task.HasWorktree() {
		_, _ = fmt.Fprintf(w, "Branch: %s\n", task.Branch)
		_, _ = fmt.Fprintf(w, "Worktree: %s\n", task.WorktreePath)
	}
	_, _ = fmt.Fprintf(w, "Created: %s\n", task.Created.Format(time.RFC3339))

	// Conversation
	for _, p := range out.Processes {
		_, _ = fmt.Fprintln(w)
		header := fmt.Sprintf("── process %s [%s] %s", p.ID, p.Profile, renderProcessStatus(p.Status))
		_, _ = fmt.Fprintln(w, styleMuted.Render(header))
		if p.Error != "" {
			_, _ = fmt.Fprintf(w, "   error: %s\n", p.Error)
		}
		for _, m := range p.Messages {
			printMessage(w, m)
		}
	}
}

// printMessage prints one conversation entry as "sender: content".
func printMessage(w io.Writer, m domain.AgentMessage) {
	prefix := string(m.Sender)
	if m.Type != domain.MessageText && m.Sender != domain.SenderUser {
		prefix += " (" + string(m.Type) + ")"
	}
	content := strings.TrimRight(m.Content, "\n")
	_, _ = fmt.Fprintf(w, "%s: %s\n", styleBold.Render(prefix), content)
}

// newCompleteCommand creates the complete command.
func newCompleteCommand(c *app.Container) *cobra.Command {
	return newCloseCommand(c, domain.StatusCompleted, "complete", "Mark a task completed and remove its worktree",
		`Mark an in-progress task completed.

This command will:
1. Kill any running agent process of the task
2. Remove the task's worktree and its task/<id> branch
3. Transition the task status to 'completed'

Review or merge the branch before completing: it is deleted.

Examples:
  delegate complete 1`)
}

// newCancelCommand creates the cancel command.
func newCancelCommand(c *app.Container) *cobra.Command {
	return newCloseCommand(c, domain.StatusCancelled, "cancel", "Cancel a task and remove its worktree",
		`Cancel a todo or in-progress task.

This command will:
1. Kill any running agent process of the task
2. Remove the task's worktree and its task/<id> branch
3. Transition the task status to 'cancelled'

Examples:
  delegate cancel 1`)
}

func newCloseCommand(c *app.Container, status domain.Status, use, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.CloseTaskUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.CloseTaskInput{
				TaskID: parseTaskID(args[0]),
				Status: status,
			})
			if err != nil {
				return err
			}

			if ok, err := printStructured(cmd, out.Task); ok {
				return err
			}
			w := cmd.OutOrStdout()
			for _, id := range out.Killed {
				_, _ = fmt.Fprintf(w, "Killed process %s\n", id)
			}
			_, _ = fmt.Fprintf(w, "Task #%s %s\n", out.Task.ID, out.Task.Status)
			return nil
		},
	}
	return cmd
}

// parseTaskID accepts "1" and "#1".
func parseTaskID(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "#")
}
