// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/runoshun/git-delegate/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// MockEventPublisher records published events.
type MockEventPublisher struct {
	events []domain.Event
	mu     sync.Mutex
}

// Publish records the event.
func (m *MockEventPublisher) Publish(ev domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded events.
func (m *MockEventPublisher) Events() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// LogEntry is one call recorded by MockLogger.
type LogEntry struct {
	Level    string
	TaskID   string
	Category string
	Msg      string
}

// MockLogger records log calls.
type MockLogger struct {
	entries []LogEntry
	mu      sync.Mutex
}

func (m *MockLogger) record(level, taskID, category, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, LogEntry{Level: level, TaskID: taskID, Category: category, Msg: msg})
}

func (m *MockLogger) Info(taskID, category, msg string)  { m.record("info", taskID, category, msg) }
func (m *MockLogger) Debug(taskID, category, msg string) { m.record("debug", taskID, category, msg) }
func (m *MockLogger) Warn(taskID, category, msg string)  { m.record("warn", taskID, category, msg) }
func (m *MockLogger) Error(taskID, category, msg string) { m.record("error", taskID, category, msg) }

// Entries returns a copy of the recorded entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// HasEntry reports whether an entry of level contains substr.
func (m *MockLogger) HasEntry(level, substr string) bool {
	for _, e := range m.Entries() {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

// MockTaskRepository is a test double for domain.TaskRepository.
// Fields are ordered to minimize memory padding.
type MockTaskRepository struct {
	Tasks     map[string]*domain.Task
	SaveErr   error
	GetErr    error
	NextIDErr error
	NextIDN   int
	mu        sync.Mutex
}

// NewMockTaskRepository creates a new MockTaskRepository with initialized maps.
func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{
		Tasks:   make(map[string]*domain.Task),
		NextIDN: 1,
	}
}

// Get retrieves a copy of a task by ID.
func (m *MockTaskRepository) Get(id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	task, ok := m.Tasks[id]
	if !ok {
		return nil, nil
	}
	c := *task
	return &c, nil
}

// List returns copies of all tasks ordered by creation time, then ID.
func (m *MockTaskRepository) List() ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	tasks := make([]*domain.Task, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		c := *t
		tasks = append(tasks, &c)
	}
	slices.SortFunc(tasks, func(a, b *domain.Task) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

// Save stores a copy of the task.
func (m *MockTaskRepository) Save(task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	c := *task
	m.Tasks[task.ID] = &c
	return nil
}

// Delete removes a task.
func (m *MockTaskRepository) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Tasks, id)
	return nil
}

// NextID returns sequential numeric IDs.
func (m *MockTaskRepository) NextID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NextIDErr != nil {
		return "", m.NextIDErr
	}
	id := fmt.Sprint(m.NextIDN)
	m.NextIDN++
	return id, nil
}

// Ensure MockTaskRepository implements domain.TaskRepository.
var _ domain.TaskRepository = (*MockTaskRepository)(nil)

// MockProcessArchive is an in-memory domain.ProcessArchive.
type MockProcessArchive struct {
	Saved   map[string]*domain.AgentProcess
	SaveErr error
	mu      sync.Mutex
}

// NewMockProcessArchive creates an empty archive.
func NewMockProcessArchive() *MockProcessArchive {
	return &MockProcessArchive{Saved: make(map[string]*domain.AgentProcess)}
}

// SaveProcess stores a copy of p.
func (m *MockProcessArchive) SaveProcess(p *domain.AgentProcess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved[p.ID] = p.Clone()
	return nil
}

// ListProcesses returns copies ordered by start time.
func (m *MockProcessArchive) ListProcesses() ([]*domain.AgentProcess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	procs := make([]*domain.AgentProcess, 0, len(m.Saved))
	for _, p := range m.Saved {
		procs = append(procs, p.Clone())
	}
	slices.SortStableFunc(procs, func(a, b *domain.AgentProcess) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return procs, nil
}

// Get returns the archived snapshot of id, or nil.
func (m *MockProcessArchive) Get(id string) *domain.AgentProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saved[id].Clone()
}

// Ensure MockProcessArchive implements domain.ProcessArchive.
var _ domain.ProcessArchive = (*MockProcessArchive)(nil)

// MockGit is a test double for domain.Git. Only RepoRoot is configurable;
// the other methods succeed without doing anything.
type MockGit struct {
	RootErr error
	Root    string
}

func (m *MockGit) RepoRoot(dir string) (string, error) {
	if m.RootErr != nil {
		return "", m.RootErr
	}
	if m.Root != "" {
		return m.Root, nil
	}
	return dir, nil
}
func (m *MockGit) CreateBranch(_, _ string) error                              { return nil }
func (m *MockGit) DeleteBranch(_, _ string) error                              { return nil }
func (m *MockGit) AddWorktree(_ context.Context, _, _, _ string) error         { return nil }
func (m *MockGit) PruneWorktrees(_ context.Context, _ string) error            { return nil }
func (m *MockGit) NumStat(_ context.Context, _ string) (string, error)         { return "", nil }
func (m *MockGit) UnifiedDiff(_ context.Context, _ string) (string, error)     { return "", nil }
func (m *MockGit) NoIndexDiff(_ context.Context, _, _ string) (string, error)  { return "", nil }
func (m *MockGit) ListUntracked(_ context.Context, _ string) ([]string, error) { return nil, nil }

// Ensure MockGit implements domain.Git.
var _ domain.Git = (*MockGit)(nil)

// MockWorktreeManager is a test double for domain.WorktreeManager.
// Fields are ordered to minimize memory padding.
type MockWorktreeManager struct {
	Dirs      map[string]bool // Task IDs with a worktree directory
	CreateErr error
	RemoveErr error
	Root      string
	Created   []string // Task IDs passed to Create
	Removed   []string // Paths passed to Remove
	mu        sync.Mutex
}

// NewMockWorktreeManager creates a manager rooted at root.
func NewMockWorktreeManager(root string) *MockWorktreeManager {
	return &MockWorktreeManager{Root: root, Dirs: make(map[string]bool)}
}

// Create records the call and returns the deterministic worktree.
func (m *MockWorktreeManager) Create(_ context.Context, taskID, _ string) (*domain.Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, taskID)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Dirs[taskID] = true
	return &domain.Worktree{
		TaskID: taskID,
		Branch: domain.BranchName(taskID),
		Path:   filepath.Join(m.Root, taskID),
	}, nil
}

// Remove records the call.
func (m *MockWorktreeManager) Remove(_ context.Context, worktreePath, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, worktreePath)
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.Dirs, filepath.Base(worktreePath))
	return nil
}

// List returns the task IDs with a worktree, sorted.
func (m *MockWorktreeManager) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Dirs))
	for id := range m.Dirs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Path returns the deterministic worktree path.
func (m *MockWorktreeManager) Path(taskID string) string {
	return filepath.Join(m.Root, taskID)
}

// Ensure MockWorktreeManager implements domain.WorktreeManager.
var _ domain.WorktreeManager = (*MockWorktreeManager)(nil)

// MockDiffer is a test double for domain.Differ.
type MockDiffer struct {
	Err   error
	Files []domain.DiffFile
	Paths []string // Worktree paths passed to Diffs
}

// Diffs returns the configured files.
func (m *MockDiffer) Diffs(_ context.Context, worktreePath string) ([]domain.DiffFile, error) {
	m.Paths = append(m.Paths, worktreePath)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Files, nil
}

// Ensure MockDiffer implements domain.Differ.
var _ domain.Differ = (*MockDiffer)(nil)

// ScriptCall is one invocation recorded by MockScriptRunner.
type ScriptCall struct {
	Dir    string
	Script string
	Env    []string
}

// MockScriptRunner is a test double for domain.ScriptRunner.
type MockScriptRunner struct {
	Err   error
	Calls []ScriptCall
}

// Run records the call.
func (m *MockScriptRunner) Run(_ context.Context, dir, script string, env ...string) error {
	m.Calls = append(m.Calls, ScriptCall{Dir: dir, Script: script, Env: env})
	return m.Err
}

// Ensure MockScriptRunner implements domain.ScriptRunner.
var _ domain.ScriptRunner = (*MockScriptRunner)(nil)

// MockConfigLoader is a test double for domain.ConfigLoader.
type MockConfigLoader struct {
	Config *domain.Config
	Err    error
}

// Load returns the configured config, or defaults.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Config == nil {
		return domain.NewDefaultConfig(), nil
	}
	return m.Config, nil
}

// Ensure MockConfigLoader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*MockConfigLoader)(nil)

// MockEventLog is a test double for domain.EventLog.
type MockEventLog struct {
	Events  map[string][]domain.Event
	Err     error
	Skipped int
}

// ReadAll returns the configured events of the task.
func (m *MockEventLog) ReadAll(taskID string) ([]domain.Event, int, error) {
	if m.Err != nil {
		return nil, 0, m.Err
	}
	return m.Events[taskID], m.Skipped, nil
}

// Ensure MockEventLog implements domain.EventLog.
var _ domain.EventLog = (*MockEventLog)(nil)

// MockProcessHandle is a test double for domain.ProcessHandle.
type MockProcessHandle struct {
	KillErr error
	Pid     int
	kills   int
	mu      sync.Mutex
}

// Kill counts the call.
func (m *MockProcessHandle) Kill() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kills++
	return m.KillErr
}

// PID returns the configured PID.
func (m *MockProcessHandle) PID() int { return m.Pid }

// Kills returns how many times Kill was called.
func (m *MockProcessHandle) Kills() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kills
}

// ErrMockKilled is the Wait error of a MockRunningProcess that was killed.
var ErrMockKilled = errors.New("signal: terminated")

// MockRunningProcess is a scripted child process. Tests write stdout lines
// with WriteLine and end the process with Exit.
type MockRunningProcess struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter
	exit    chan error
	once    sync.Once
	Pid     int
	kills   int
	mu      sync.Mutex
}

// NewMockRunningProcess creates a process whose streams stay open until Exit.
func NewMockRunningProcess(pid int) *MockRunningProcess {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	return &MockRunningProcess{
		stdoutR: outR,
		stdoutW: outW,
		stderrR: errR,
		stderrW: errW,
		exit:    make(chan error, 1),
		Pid:     pid,
	}
}

// Stdout returns the child's standard output stream.
func (p *MockRunningProcess) Stdout() io.Reader { return p.stdoutR }

// Stderr returns the child's standard error stream.
func (p *MockRunningProcess) Stderr() io.Reader { return p.stderrR }

// PID returns the configured PID.
func (p *MockRunningProcess) PID() int { return p.Pid }

// WriteLine writes one stdout line. It blocks until the line is read.
func (p *MockRunningProcess) WriteLine(line string) {
	_, _ = io.WriteString(p.stdoutW, line+"\n")
}

// WriteStderr writes one stderr line. It blocks until the line is read.
func (p *MockRunningProcess) WriteStderr(line string) {
	_, _ = io.WriteString(p.stderrW, line+"\n")
}

// Exit closes the streams and makes Wait return err. Only the first call counts.
func (p *MockRunningProcess) Exit(err error) {
	p.once.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		p.exit <- err
	})
}

// Wait blocks until Exit.
func (p *MockRunningProcess) Wait() error {
	return <-p.exit
}

// Kill terminates the process with ErrMockKilled.
func (p *MockRunningProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.Exit(ErrMockKilled)
	return nil
}

// Kills returns how many times Kill was called.
func (p *MockRunningProcess) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

// Ensure MockRunningProcess implements domain.RunningProcess.
var _ domain.RunningProcess = (*MockRunningProcess)(nil)

// MockLauncher is a test double for domain.ProcessLauncher. Each Launch
// creates a MockRunningProcess that exits with ctx.Err() when ctx is done.
type MockLauncher struct {
	Err         error
	Invocations []*domain.Invocation
	Processes   []*MockRunningProcess
	launched    chan *MockRunningProcess
	mu          sync.Mutex
}

// NewMockLauncher creates a launcher.
func NewMockLauncher() *MockLauncher {
	return &MockLauncher{launched: make(chan *MockRunningProcess, 64)}
}

// Launch records the invocation and starts a scripted process.
func (m *MockLauncher) Launch(ctx context.Context, inv *domain.Invocation) (domain.RunningProcess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invocations = append(m.Invocations, inv)
	if m.Err != nil {
		return nil, m.Err
	}
	p := NewMockRunningProcess(1000 + len(m.Processes))
	m.Processes = append(m.Processes, p)
	go func() {
		<-ctx.Done()
		p.Exit(ctx.Err())
	}()
	m.launched <- p
	return p, nil
}

// Next waits for the next launched process.
func (m *MockLauncher) Next(t interface{ Fatal(...any) }) *MockRunningProcess {
	select {
	case p := <-m.launched:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no process launched")
		return nil
	}
}

// LastInvocation returns the most recent invocation, or nil.
func (m *MockLauncher) LastInvocation() *domain.Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Invocations) == 0 {
		return nil
	}
	return m.Invocations[len(m.Invocations)-1]
}

// Ensure MockLauncher implements domain.ProcessLauncher.
var _ domain.ProcessLauncher = (*MockLauncher)(nil)

// MockProfile is a test double for domain.AgentProfile. It plans
// `<Program> <prompt>` and parses {"type": ..., "content": ...} lines.
type MockProfile struct {
	PlanErr  error
	NameStr  string
	Program  string
	Requests []domain.InvocationRequest
	mu       sync.Mutex
}

// Name returns the profile name.
func (m *MockProfile) Name() string { return m.NameStr }

// Plan records the request.
func (m *MockProfile) Plan(req domain.InvocationRequest) (*domain.Invocation, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.PlanErr != nil {
		return nil, m.PlanErr
	}
	program := m.Program
	if program == "" {
		program = "mock-agent"
	}
	return &domain.Invocation{Program: program, Dir: req.Dir, Args: []string{req.Prompt}}, nil
}

// LastRequest returns the most recent request.
func (m *MockProfile) LastRequest() domain.InvocationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return domain.InvocationRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// ParseLine decodes {"type": ..., "content": ...}. A record with a type but
// no content is recognized without producing a message.
func (m *MockProfile) ParseLine(line []byte) ([]domain.AgentMessage, bool) {
	var rec struct {
		Type    *string `json:"type"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(line, &rec); err != nil || rec.Type == nil {
		return nil, false
	}
	if rec.Content == nil {
		return nil, true
	}
	return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageType(*rec.Type), *rec.Content)}, true
}

// Ensure MockProfile implements domain.AgentProfile.
var _ domain.AgentProfile = (*MockProfile)(nil)

// MockProfileResolver is a test double for domain.ProfileResolver.
type MockProfileResolver struct {
	Profiles map[string]*MockProfile
	Default  string
}

// NewMockProfileResolver registers a MockProfile per name; the first is the default.
func NewMockProfileResolver(names ...string) *MockProfileResolver {
	r := &MockProfileResolver{Profiles: make(map[string]*MockProfile)}
	for i, n := range names {
		if i == 0 {
			r.Default = n
		}
		r.Profiles[n] = &MockProfile{NameStr: n}
	}
	return r
}

// Resolve returns the named profile.
func (m *MockProfileResolver) Resolve(name string) (domain.AgentProfile, error) {
	if name == "" {
		name = m.Default
	}
	p, ok := m.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrProfileNotFound)
	}
	return p, nil
}

// Ensure MockProfileResolver implements domain.ProfileResolver.
var _ domain.ProfileResolver = (*MockProfileResolver)(nil)

// MockConfigManager is a test double for domain.ConfigManager.
type MockConfigManager struct {
	InitErr error
	Local   domain.ConfigInfo
	Global  domain.ConfigInfo
	Inits   []string // "local" or "global", per Init call
}

// LocalConfigInfo returns the configured info.
func (m *MockConfigManager) LocalConfigInfo() domain.ConfigInfo { return m.Local }

// GlobalConfigInfo returns the configured info.
func (m *MockConfigManager) GlobalConfigInfo() domain.ConfigInfo { return m.Global }

// InitLocalConfig records the call.
func (m *MockConfigManager) InitLocalConfig() (string, error) {
	m.Inits = append(m.Inits, "local")
	return m.Local.Path, m.InitErr
}

// InitGlobalConfig records the call.
func (m *MockConfigManager) InitGlobalConfig() (string, error) {
	m.Inits = append(m.Inits, "global")
	return m.Global.Path, m.InitErr
}

// Ensure MockConfigManager implements domain.ConfigManager.
var _ domain.ConfigManager = (*MockConfigManager)(nil)
