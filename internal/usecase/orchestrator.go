package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// maxLineSize bounds a single line of agent output.
const maxLineSize = 1024 * 1024

// stderrPrefix marks raw output lines that came from standard error.
const stderrPrefix = "[stderr] "

// SpawnInput contains the parameters for spawning an agent process.
// Fields are ordered to minimize memory padding.
type SpawnInput struct {
	TaskID            string // Owning task (required)
	Message           string // User message recorded as the first log entry (required)
	WorktreePath      string // Directory the agent works in (required)
	PriorContext      string // Transcript of earlier turns (optional)
	Profile           string // Profile name (optional, empty = default)
	Model             string // Model override (optional)
	PreviousProcessID string // Process this one continues (optional)
}

// ContinueInput contains the parameters for continuing a conversation.
type ContinueInput struct {
	ProcessID    string // Process whose transcript is carried over (required)
	Message      string // New user message (required)
	WorktreePath string // Directory the agent works in (required)
	Profile      string // Profile name (optional, empty = the previous process's)
	Model        string // Model override (optional)
}

// Orchestrator spawns agent processes, streams their output into the
// registry and records how they end.
type Orchestrator struct {
	registry domain.ProcessRegistry
	profiles domain.ProfileResolver
	launcher domain.ProcessLauncher
	archive  domain.ProcessArchive
	clock    domain.Clock
	logger   domain.Logger
	runs     map[string]*run // Processes under supervision
	timeout  time.Duration
	mu       sync.Mutex
}

// run is the supervision state of a live process.
type run struct {
	done   chan struct{}      // Closed when supervision ends
	cancel context.CancelFunc // Stops the process group
}

// NewOrchestrator creates an Orchestrator. archive may be nil; timeout 0
// disables the run time limit.
func NewOrchestrator(
	registry domain.ProcessRegistry,
	profiles domain.ProfileResolver,
	launcher domain.ProcessLauncher,
	archive domain.ProcessArchive,
	clock domain.Clock,
	logger domain.Logger,
	timeout time.Duration,
) *Orchestrator {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Orchestrator{
		registry: registry,
		profiles: profiles,
		launcher: launcher,
		archive:  archive,
		clock:    clock,
		logger:   logger,
		runs:     make(map[string]*run),
		timeout:  timeout,
	}
}

// Spawn registers a process and launches its agent.
// The process is visible in the registry before the agent starts. When the
// launch fails the process is marked failed and its ID is returned together
// with the error.
func (o *Orchestrator) Spawn(ctx context.Context, in SpawnInput) (string, error) {
	msg, err := shared.ValidateMessage(in.Message)
	if err != nil {
		return "", err
	}
	in.Message = msg
	profile, err := o.profiles.Resolve(in.Profile)
	if err != nil {
		return "", fmt.Errorf("resolve profile: %w", err)
	}
	prompt, err := domain.BuildPrompt(in.Message, in.PriorContext)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	id := o.registry.Create(domain.CreateProcessOptions{
		TaskID:            in.TaskID,
		Message:           in.Message,
		PreviousProcessID: in.PreviousProcessID,
		Profile:           profile.Name(),
	})

	inv, err := profile.Plan(domain.InvocationRequest{Prompt: prompt, Dir: in.WorktreePath, Model: in.Model})
	if err != nil {
		return id, o.failSpawn(id, in.TaskID, fmt.Errorf("plan invocation: %w", err))
	}

	// The agent outlives the caller's context; only Kill and the timeout stop it.
	procCtx, cancel := o.processContext(ctx)
	proc, err := o.launcher.Launch(procCtx, inv)
	if err != nil {
		cancel()
		return id, o.failSpawn(id, in.TaskID, fmt.Errorf("launch agent: %w", err))
	}
	if err := o.registry.AttachHandle(id, proc); err != nil {
		// Killed between Create and Launch.
		cancel()
		_ = proc.Kill()
	}

	r := &run{done: make(chan struct{}), cancel: cancel}
	o.mu.Lock()
	o.runs[id] = r
	o.mu.Unlock()

	o.logger.Info(in.TaskID, "agent", fmt.Sprintf("spawned process %s (profile %s, pid %d)", id, profile.Name(), proc.PID()))
	go o.supervise(procCtx, id, in.TaskID, profile, proc, r)
	return id, nil
}

func (o *Orchestrator) processContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if o.timeout > 0 {
		return context.WithTimeout(base, o.timeout)
	}
	return context.WithCancel(base)
}

// failSpawn records a spawn failure on the process and returns err.
func (o *Orchestrator) failSpawn(id, taskID string, err error) error {
	o.logger.Error(taskID, "agent", fmt.Sprintf("spawn %s failed: %v", id, err))
	if serr := o.registry.SetStatus(id, domain.ProcessFailed, o.clock.Now(), err.Error()); serr != nil {
		o.logger.Warn(taskID, "agent", fmt.Sprintf("mark %s failed: %v", id, serr))
	}
	o.archiveProcess(id, taskID)
	return err
}

// Continue renders the transcript of an existing process, marks it completed
// and spawns a new process that carries the transcript as prior context.
// A still-running predecessor is terminated.
func (o *Orchestrator) Continue(ctx context.Context, in ContinueInput) (string, error) {
	msg, err := shared.ValidateMessage(in.Message)
	if err != nil {
		return "", err
	}
	in.Message = msg
	prev := o.registry.Get(in.ProcessID)
	if prev == nil {
		return "", fmt.Errorf("continue %s: %w", in.ProcessID, domain.ErrProcessNotFound)
	}
	transcript := domain.RenderTranscript(prev.Messages)

	if prev.Status == domain.ProcessRunning {
		if err := o.registry.SetStatus(prev.ID, domain.ProcessCompleted, o.clock.Now(), ""); err != nil {
			o.logger.Debug(prev.TaskID, "agent", fmt.Sprintf("complete %s: %v", prev.ID, err))
		}
		if err := o.terminate(prev.ID); err != nil {
			o.logger.Warn(prev.TaskID, "agent", fmt.Sprintf("terminate %s: %v", prev.ID, err))
		}
	}

	profile := in.Profile
	if profile == "" {
		profile = prev.Profile
	}
	return o.Spawn(ctx, SpawnInput{
		TaskID:            prev.TaskID,
		Message:           in.Message,
		WorktreePath:      in.WorktreePath,
		PriorContext:      transcript,
		Profile:           profile,
		Model:             in.Model,
		PreviousProcessID: prev.ID,
	})
}

// Kill marks the process killed and stops its child, if one is alive.
func (o *Orchestrator) Kill(processID string) error {
	if err := o.registry.Kill(processID); err != nil {
		return err
	}
	if err := o.terminate(processID); err != nil {
		return fmt.Errorf("signal process %s: %w", processID, err)
	}
	return nil
}

// terminate signals the live child of a process and cancels its context so
// the launcher tears down the whole process group.
func (o *Orchestrator) terminate(processID string) error {
	o.mu.Lock()
	r := o.runs[processID]
	o.mu.Unlock()

	var err error
	if handle := o.registry.Handle(processID); handle != nil {
		err = handle.Kill()
	}
	if r != nil {
		r.cancel()
	}
	return err
}

// Wait blocks until supervision of the process has finished and returns its
// final record. Processes not spawned by this orchestrator return immediately.
func (o *Orchestrator) Wait(ctx context.Context, processID string) (*domain.AgentProcess, error) {
	o.mu.Lock()
	r := o.runs[processID]
	o.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := o.registry.Get(processID)
	if p == nil {
		return nil, fmt.Errorf("wait %s: %w", processID, domain.ErrProcessNotFound)
	}
	return p, nil
}

// supervise drains the child's output and records its exit status.
func (o *Orchestrator) supervise(
	ctx context.Context,
	id, taskID string,
	profile domain.AgentProfile,
	proc domain.RunningProcess,
	r *run,
) {
	defer func() {
		o.mu.Lock()
		delete(o.runs, id)
		o.mu.Unlock()
		r.cancel()
		close(r.done)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.drainStderr(id, taskID, proc.Stderr())
	}()
	o.readStdout(id, taskID, profile, proc.Stdout())
	wg.Wait()

	waitErr := proc.Wait()

	status, reason := domain.ProcessCompleted, ""
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status, reason = domain.ProcessFailed, fmt.Sprintf("timed out after %s", o.timeout)
	case waitErr != nil:
		status, reason = domain.ProcessFailed, waitErr.Error()
	}

	if err := o.registry.SetStatus(id, status, o.clock.Now(), reason); err != nil {
		// Already killed or continued.
		o.logger.Debug(taskID, "agent", fmt.Sprintf("process %s exited after it was finalized: %v", id, err))
	} else {
		o.logger.Info(taskID, "agent", fmt.Sprintf("process %s %s", id, status))
	}
	o.archiveProcess(id, taskID)
}

// readStdout converts each output line into messages. Lines that yield no
// message are kept as raw output.
func (o *Orchestrator) readStdout(id, taskID string, profile domain.AgentProfile, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		msgs, ok := profile.ParseLine(line)
		if !ok || len(msgs) == 0 {
			if err := o.registry.AppendRawOutput(id, string(line)); err != nil {
				o.logger.Warn(taskID, "agent", err.Error())
			}
			continue
		}
		for _, m := range msgs {
			if err := o.registry.AppendMessage(id, m); err != nil {
				o.logger.Warn(taskID, "agent", err.Error())
			}
		}
	}
	if err := scanner.Err(); err != nil {
		o.logger.Warn(taskID, "agent", fmt.Sprintf("read output of %s: %v", id, err))
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

// drainStderr retains standard error lines as raw output.
func (o *Orchestrator) drainStderr(id, taskID string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		o.logger.Debug(taskID, "agent", fmt.Sprintf("%s stderr: %s", id, line))
		_ = o.registry.AppendRawOutput(id, stderrPrefix+line)
	}
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}

// archiveProcess persists the current snapshot of a process.
func (o *Orchestrator) archiveProcess(id, taskID string) {
	if o.archive == nil {
		return
	}
	p := o.registry.Get(id)
	if p == nil {
		return
	}
	if err := o.archive.SaveProcess(p); err != nil {
		o.logger.Warn(taskID, "agent", fmt.Sprintf("archive process %s: %v", id, err))
	}
}
