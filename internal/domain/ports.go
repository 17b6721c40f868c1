package domain

import (
	"context"
	"io"
	"time"
)

// TaskRepository manages task persistence.
type TaskRepository interface {
	// Get retrieves a task by ID. Returns nil if not found.
	Get(id string) (*Task, error)

	// List retrieves all tasks ordered by creation time.
	List() ([]*Task, error)

	// Save creates or updates a task.
	Save(task *Task) error

	// Delete removes a task by ID.
	Delete(id string) error

	// NextID returns the next available task ID.
	NextID() (string, error)
}

// DocumentStore stores opaque JSON documents grouped in named collections.
type DocumentStore interface {
	// Get decodes the document into v. Returns false if it does not exist.
	Get(collection, key string, v any) (bool, error)

	// Set encodes v and stores it under key.
	Set(collection, key string, v any) error

	// Delete removes a document. Missing documents are not an error.
	Delete(collection, key string) error

	// Keys returns the sorted keys of a collection.
	Keys(collection string) ([]string, error)

	// NextSeq returns the next value of the collection's sequence, starting at 1.
	NextSeq(collection string) (int, error)
}

// ProcessArchive persists finished agent processes across runs.
type ProcessArchive interface {
	// SaveProcess stores a snapshot of the process.
	SaveProcess(p *AgentProcess) error

	// ListProcesses returns all archived processes ordered by start time.
	ListProcesses() ([]*AgentProcess, error)
}

// Git provides the git plumbing used by worktrees and diffs.
type Git interface {
	// RepoRoot returns the top-level directory of the repository containing dir.
	RepoRoot(dir string) (string, error)

	// CreateBranch creates branch at the current HEAD of the repository at repoPath.
	CreateBranch(repoPath, branch string) error

	// DeleteBranch deletes branch from the repository at repoPath.
	DeleteBranch(repoPath, branch string) error

	// AddWorktree materializes a worktree for an existing branch at path.
	AddWorktree(ctx context.Context, repoPath, path, branch string) error

	// PruneWorktrees drops registrations of worktrees whose directory is gone.
	PruneWorktrees(ctx context.Context, repoPath string) error

	// NumStat returns `git diff --numstat` output for dir.
	NumStat(ctx context.Context, dir string) (string, error)

	// UnifiedDiff returns `git diff --unified=3 --no-color` output for dir.
	UnifiedDiff(ctx context.Context, dir string) (string, error)

	// NoIndexDiff returns a new-file diff of relPath against the null device.
	NoIndexDiff(ctx context.Context, dir, relPath string) (string, error)

	// ListUntracked returns untracked, non-ignored files of dir.
	ListUntracked(ctx context.Context, dir string) ([]string, error)
}

// Differ computes the structured diff of a worktree.
type Differ interface {
	// Diffs returns tracked changes in diff order followed by untracked files.
	Diffs(ctx context.Context, worktreePath string) ([]DiffFile, error)
}

// WorktreeManager manages per-task git worktrees.
type WorktreeManager interface {
	// Create creates a fresh worktree for the task from repoPath's HEAD.
	Create(ctx context.Context, taskID, repoPath string) (*Worktree, error)

	// Remove deletes a worktree and, best-effort, its branch. Missing paths are a no-op.
	Remove(ctx context.Context, worktreePath, repoPath string) error

	// List returns the task IDs that have a worktree directory.
	List() ([]string, error)

	// Path returns the deterministic worktree directory of a task.
	Path(taskID string) string
}

// CreateProcessOptions configures registry.Create.
type CreateProcessOptions struct {
	TaskID            string // Owning task
	Message           string // Opening user message
	PreviousProcessID string // Process this one continues, if any
	Profile           string // Profile used to spawn
}

// ProcessHandle is the live child behind a registry entry.
type ProcessHandle interface {
	// Kill requests termination of the child process.
	Kill() error

	// PID returns the OS process ID.
	PID() int
}

// ProcessRegistry is the concurrency-safe table of agent processes.
type ProcessRegistry interface {
	// Create registers a running process with the opening user message.
	Create(opts CreateProcessOptions) string

	// Get returns a copy of the process. Returns nil if not found.
	Get(id string) *AgentProcess

	// GetByTask returns copies of the task's processes in insertion order.
	GetByTask(taskID string) []*AgentProcess

	// Latest returns a copy of the task's most recently started process, or nil.
	Latest(taskID string) *AgentProcess

	// ListSummaries returns summaries of all processes in insertion order.
	ListSummaries() []ProcessSummary

	// AppendMessage appends to the process's log.
	AppendMessage(id string, msg AgentMessage) error

	// AppendRawOutput retains an unparsed output line.
	AppendRawOutput(id string, line string) error

	// SetStatus moves a running process to a terminal status.
	SetStatus(id string, status ProcessStatus, endTime time.Time, reason string) error

	// Kill marks the process killed. It does not signal the child.
	Kill(id string) error

	// AttachHandle records the live child of a process.
	AttachHandle(id string, h ProcessHandle) error

	// Handle returns the live child of a process, or nil.
	Handle(id string) ProcessHandle
}

// InvocationRequest is what a profile needs to build an invocation.
type InvocationRequest struct {
	Prompt string // Full prompt, including any prior transcript
	Dir    string // Worktree the agent works in
	Model  string // Optional model override
}

// Invocation is a concrete process launch plan.
type Invocation struct {
	Program string
	Dir     string
	Args    []string
	Env     []string // Extra environment, appended to the current environment
}

// AgentProfile builds invocations and interprets output for one agent backend.
type AgentProfile interface {
	// Name returns the profile name.
	Name() string

	// Plan builds the invocation for a request.
	Plan(req InvocationRequest) (*Invocation, error)

	// ParseLine converts one stdout line into messages.
	// ok is false when the line is not a structured record.
	ParseLine(line []byte) (msgs []AgentMessage, ok bool)
}

// ProfileResolver looks up agent profiles by name.
type ProfileResolver interface {
	// Resolve returns the named profile; empty name selects the default.
	Resolve(name string) (AgentProfile, error)
}

// RunningProcess is a launched child with piped output.
type RunningProcess interface {
	ProcessHandle

	// Stdout returns the child's standard output stream.
	Stdout() io.Reader

	// Stderr returns the child's standard error stream.
	Stderr() io.Reader

	// Wait blocks until the child exits. Streams must be drained first.
	Wait() error
}

// ProcessLauncher starts agent processes.
type ProcessLauncher interface {
	// Launch starts the invocation. The child is killed when ctx is done.
	Launch(ctx context.Context, inv *Invocation) (RunningProcess, error)
}

// CommandRunner runs a command to completion.
type CommandRunner interface {
	// Run executes name with args in dir and returns its captured output.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// ScriptRunner runs shell scripts.
type ScriptRunner interface {
	// Run executes script with sh in dir. env entries ("KEY=value") are added
	// to the current environment.
	Run(ctx context.Context, dir, script string, env ...string) error
}

// EventPublisher fans events out to listeners.
type EventPublisher interface {
	// Publish delivers the event to every listener. It never blocks on slow listeners.
	Publish(ev Event)
}

// EventLog reads the persisted event history of a task.
type EventLog interface {
	// ReadAll returns the task's events in write order and the number of
	// unreadable lines that were skipped.
	ReadAll(taskID string) ([]Event, int, error)
}

// ConfigLoader loads configuration from files.
type ConfigLoader interface {
	// Load returns the merged configuration (data root + global).
	Load() (*Config, error)
}

// ConfigManager manages configuration files.
type ConfigManager interface {
	// LocalConfigInfo describes the data root config file.
	LocalConfigInfo() ConfigInfo

	// GlobalConfigInfo describes the global config file.
	GlobalConfigInfo() ConfigInfo

	// InitLocalConfig writes the template to the data root config file.
	InitLocalConfig() (string, error)

	// InitGlobalConfig writes the template to the global config file.
	InitGlobalConfig() (string, error)
}

// Logger writes operational logs, optionally scoped to a task.
type Logger interface {
	Info(taskID, category, msg string)
	Debug(taskID, category, msg string)
	Warn(taskID, category, msg string)
	Error(taskID, category, msg string)
}

// NopLogger discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(_, _, _ string)  {}
func (NopLogger) Debug(_, _, _ string) {}
func (NopLogger) Warn(_, _, _ string)  {}
func (NopLogger) Error(_, _, _ string) {}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
