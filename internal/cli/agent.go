package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// newStartCommand creates the start command.
func newStartCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Profile string
		Model   string
	}

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Create the task's worktree and run its agent",
		Long: `Start a todo task.

This command will:
1. Create branch task/<id> from the repository's HEAD and a worktree for it
2. Run [worktree] setup_command inside the worktree, if configured
3. Launch the agent with the task title and description as its prompt

The agent's messages are printed as they arrive. Ctrl-C kills the agent;
the task stays in progress so you can follow up with 'delegate send'.

Examples:
  delegate start 1
  delegate start 1 --profile codex --model o3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, unsubscribe := c.Events.Subscribe()
			defer unsubscribe()

			uc := c.StartTaskUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.StartTaskInput{
				TaskID:  parseTaskID(args[0]),
				Profile: opts.Profile,
				Model:   opts.Model,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Started task #%s in %s (process %s)\n",
				out.Task.ID, out.Worktree.Path, out.ProcessID)
			return finishProcess(cmd, c, out.ProcessID, events)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "Agent profile (default: the task's, then default_profile)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model override")

	return cmd
}

// newSendCommand creates the send command.
func newSendCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Profile string
		Model   string
	}

	cmd := &cobra.Command{
		Use:   "send <id> <message>",
		Short: "Send a follow-up message to the task's agent",
		Long: `Continue the conversation of an in-progress task.

A new agent process is launched in the task's worktree with the transcript
of the latest process as context. A predecessor that is still running is
marked completed and stopped first.

Examples:
  delegate send 1 "Also cover the error path with a test"
  delegate send 1 --profile codex "Review the change for races"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, unsubscribe := c.Events.Subscribe()
			defer unsubscribe()

			uc := c.SendMessageUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.SendMessageInput{
				TaskID:  parseTaskID(args[0]),
				Message: args[1],
				Profile: opts.Profile,
				Model:   opts.Model,
			})
			if err != nil {
				return err
			}

			if out.PreviousProcessID != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Continuing %s as process %s\n", out.PreviousProcessID, out.ProcessID)
			} else {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Started process %s\n", out.ProcessID)
			}
			return finishProcess(cmd, c, out.ProcessID, events)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "Agent profile (default: the previous process's)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model override")

	return cmd
}

// finishProcess follows the process until it ends and reports the outcome.
// A failed or killed process is returned as an error.
func finishProcess(cmd *cobra.Command, c *app.Container, id string, events <-chan domain.Event) error {
	p, err := followProcess(cmd, c, id, events)
	if err != nil {
		return err
	}
	if ok, err := printStructured(cmd, p); ok {
		return err
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Process %s %s after %s\n",
		p.ID, renderProcessStatus(p.Status), formatDuration(p.Duration(c.Clock.Now())))
	switch p.Status {
	case domain.ProcessFailed:
		return fmt.Errorf("agent failed: %s", p.Error)
	case domain.ProcessKilled:
		return errors.New("agent killed")
	}
	return nil
}

// followProcess prints the process's messages as they arrive and returns its
// final state. An interrupt kills the process and keeps waiting for it to end.
func followProcess(cmd *cobra.Command, c *app.Container, id string, events <-chan domain.Event) (*domain.AgentProcess, error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Text output streams; structured output only prints the final state.
	var w io.Writer = io.Discard
	if outputFormat(cmd) == formatText {
		w = cmd.OutOrStdout()
	}

	printed := 0
	flush := func() {
		p := c.Registry.Get(id)
		if p == nil {
			return
		}
		for ; printed < len(p.Messages); printed++ {
			printMessage(w, p.Messages[printed])
		}
	}

	var (
		final   *domain.AgentProcess
		waitErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		final, waitErr = c.Orchestrator.Wait(context.WithoutCancel(ctx), id)
	}()

	flush()
	interrupt := ctx.Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.ProcessID == id {
				flush()
			}
		case <-interrupt:
			interrupt = nil
			if err := c.Orchestrator.Kill(id); err != nil && !errors.Is(err, domain.ErrInvalidProcessStatus) {
				printWarning(cmd.ErrOrStderr(), err.Error())
			}
		case <-done:
			flush()
			return final, waitErr
		}
	}
}

// newPsCommand creates the ps command for listing agent processes.
func newPsCommand(c *app.Container) *cobra.Command {
	var opts struct {
		TaskID  string
		Running bool
	}

	cmd := &cobra.Command{
		Use:   "ps [process-id]",
		Short: "List agent processes or show one",
		Long: `List agent processes known to the registry, or show one process in full.

Processes of earlier invocations are restored from the archive; processes
that were still running when their invocation ended are shown as failed.

Examples:
  delegate ps
  delegate ps --task 1
  delegate ps --running
  delegate ps 3f2a9c1e-... -o yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				uc := c.ShowProcessUseCase()
				out, err := uc.Execute(cmd.Context(), usecase.ShowProcessInput{ProcessID: args[0]})
				if err != nil {
					return err
				}
				if ok, err := printStructured(cmd, out.Process); ok {
					return err
				}
				printProcessDetails(cmd.OutOrStdout(), out.Process, c.Clock.Now())
				return nil
			}

			uc := c.ListProcessesUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ListProcessesInput{
				TaskID:      parseTaskID(opts.TaskID),
				RunningOnly: opts.Running,
			})
			if err != nil {
				return err
			}
			if ok, err := printStructured(cmd, out.Processes); ok {
				return err
			}
			printProcessList(cmd.OutOrStdout(), out.Processes)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Only processes of this task")
	cmd.Flags().BoolVar(&opts.Running, "running", false, "Only running processes")

	return cmd
}

// printProcessList prints process summaries as an aligned table.
func printProcessList(w io.Writer, procs []domain.ProcessSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "PROCESS\tTASK\tSTATUS\tMESSAGES\tSTARTED")
	for _, p := range procs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			p.ID,
			p.TaskID,
			renderProcessStatus(p.Status),
			p.MessageCount,
			p.StartTime.Local().Format(time.DateTime),
		)
	}
}

// printProcessDetails prints one process with its messages and raw output.
func printProcessDetails(w io.Writer, p *domain.AgentProcess, now time.Time) {
	_, _ = fmt.Fprintln(w, styleBold.Render("# Process "+p.ID))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Task: %s\n", p.TaskID)
	_, _ = fmt.Fprintf(w, "Profile: %s\n", orDash(p.Profile))
	_, _ = fmt.Fprintf(w, "Status: %s\n", renderProcessStatus(p.Status))
	if p.Error != "" {
		_, _ = fmt.Fprintf(w, "Error: %s\n", p.Error)
	}
	if p.PreviousProcessID != "" {
		_, _ = fmt.Fprintf(w, "Continues: %s\n", p.PreviousProcessID)
	}
	_, _ = fmt.Fprintf(w, "Started: %s\n", p.StartTime.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Duration: %s\n", formatDuration(p.Duration(now)))

	_, _ = fmt.Fprintln(w)
	for _, m := range p.Messages {
		printMessage(w, m)
	}
	if len(p.RawOutput) > 0 {
		_, _ = fmt.Fprintln(w, styleMuted.Render("\nUnparsed output:"))
		for _, line := range p.RawOutput {
			_, _ = fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// newKillCommand creates the kill command.
func newKillCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill <process-id>",
		Short: "Kill a running agent process",
		Long: `Mark a running agent process killed and terminate its child.

Only children launched by this invocation can be signalled; processes of an
invocation that already exited are marked killed without a signal.

Examples:
  delegate kill 3f2a9c1e-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.KillProcessUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.KillProcessInput{ProcessID: args[0]})
			if err != nil {
				return err
			}
			if ok, err := printStructured(cmd, out.Process.Summary()); ok {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Killed process %s\n", out.Process.ID)
			return nil
		},
	}
	return cmd
}

// newLogCommand creates the log command for showing a task's event log.
func newLogCommand(c *app.Container) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Show the event log of a task",
		Long: `Show the recorded process events of a task: creations, messages and
status changes, oldest first.

Examples:
  delegate log 1
  delegate log 1 -n 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc := c.ShowLogsUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ShowLogsInput{
				TaskID: parseTaskID(args[0]),
				Lines:  lines,
			})
			if err != nil {
				return err
			}
			if out.Skipped > 0 {
				printWarning(cmd.ErrOrStderr(), fmt.Sprintf("skipped %d unreadable log lines", out.Skipped))
			}

			evs := out.Events
			if evs == nil {
				evs = []domain.Event{}
			}
			if ok, err := printStructured(cmd, evs); ok {
				return err
			}
			printEvents(cmd.OutOrStdout(), evs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Show only the last N events")

	return cmd
}

// printEvents prints one line per event.
func printEvents(w io.Writer, evs []domain.Event) {
	for _, ev := range evs {
		ts := styleMuted.Render(ev.Time.Local().Format(time.DateTime))
		switch ev.Type {
		case domain.EventProcessMessage:
			if ev.Message != nil {
				_, _ = fmt.Fprintf(w, "%s %s %s: %s\n", ts, ev.ProcessID, ev.Message.Sender, ev.Message.Content)
			}
		case domain.EventProcessStatus:
			_, _ = fmt.Fprintf(w, "%s %s %s\n", ts, ev.ProcessID, renderProcessStatus(ev.Status))
		default:
			_, _ = fmt.Fprintf(w, "%s %s %s\n", ts, ev.ProcessID, ev.Type)
		}
	}
}
