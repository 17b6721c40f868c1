package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/runoshun/git-delegate/internal/app"
	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/infra/logging"
	"github.com/runoshun/git-delegate/internal/testutil"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// testEnv is a container wired to mocks.
type testEnv struct {
	c         *app.Container
	tasks     *testutil.MockTaskRepository
	worktrees *testutil.MockWorktreeManager
	differ    *testutil.MockDiffer
	launcher  *testutil.MockLauncher
	config    *testutil.MockConfigLoader
	manager   *testutil.MockConfigManager
	events    *testutil.MockEventLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		tasks:     testutil.NewMockTaskRepository(),
		worktrees: testutil.NewMockWorktreeManager("/data/worktrees"),
		differ:    &testutil.MockDiffer{},
		launcher:  testutil.NewMockLauncher(),
		config:    &testutil.MockConfigLoader{},
		manager:   &testutil.MockConfigManager{},
		events:    &testutil.MockEventLog{Events: map[string][]domain.Event{}},
	}
	env.c = app.NewWithDeps("/data", app.Deps{
		Tasks:         env.tasks,
		Archive:       testutil.NewMockProcessArchive(),
		Git:           &testutil.MockGit{Root: "/repo"},
		Differ:        env.differ,
		Worktrees:     env.worktrees,
		Scripts:       &testutil.MockScriptRunner{},
		ConfigLoader:  env.config,
		ConfigManager: env.manager,
		Profiles:      testutil.NewMockProfileResolver("claude", "codex"),
		Launcher:      env.launcher,
		EventLog:      env.events,
		Clock:         &testutil.MockClock{NowTime: now},
		Logger:        &testutil.MockLogger{},
	})
	return env
}

// run executes the root command with args.
func (env *testEnv) run(args ...string) (string, string, error) {
	root := NewRootCommand(env.c, "test")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// addTask stores a task directly.
func (env *testEnv) addTask(t *testing.T, id, title string, status domain.Status) {
	t.Helper()
	task := &domain.Task{ID: id, Title: title, RepoPath: "/repo", Status: status, Created: now}
	if status == domain.StatusInProgress {
		task.Branch = domain.BranchName(id)
		task.WorktreePath = env.worktrees.Path(id)
		env.worktrees.Dirs[id] = true
	}
	require.NoError(t, env.tasks.Save(task))
}

// reporter turns launcher timeouts into test errors off the test goroutine.
type reporter struct{ t *testing.T }

func (r reporter) Fatal(args ...any) { r.t.Error(args...) }

func TestNewRootCommand_Help(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run("--help")

	require.NoError(t, err)
	for _, sub := range []string{"new", "list", "show", "start", "send", "diff", "complete", "cancel", "worktree", "ps", "kill", "log", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestNewRootCommand_InvalidOutputFormat(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("list", "-o", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestNewRootCommand_PrintsConfigWarnings(t *testing.T) {
	env := newTestEnv(t)
	cfg := domain.NewDefaultConfig()
	cfg.Warnings = []string{`unknown key "agnet.timeout"`}
	env.config.Config = cfg

	_, stderr, err := env.run("list")

	require.NoError(t, err)
	assert.Contains(t, stderr, `Warning: unknown key "agnet.timeout"`)
}

func TestNewRootCommand_VerboseEchoesLogs(t *testing.T) {
	env := newTestEnv(t)
	env.c.Logger = logging.New("", slog.LevelInfo)

	_, stderr, err := env.run("new", "--title", "Add retries", "--repo", "/repo")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = env.run("-v", "new", "--title", "Add backoff", "--repo", "/repo")
	require.NoError(t, err)
	assert.Contains(t, stderr, "category=task task=2")
}

func TestNewCommand(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run("new", "--title", "Add retries", "--body", "Use backoff", "--repo", "/repo/sub")

	require.NoError(t, err)
	assert.Contains(t, out, "Created task #1: Add retries")
	task := env.tasks.Tasks["1"]
	require.NotNil(t, task)
	assert.Equal(t, "Use backoff", task.Description)
	assert.Equal(t, "/repo", task.RepoPath)
	assert.Equal(t, domain.StatusTodo, task.Status)
}

func TestNewCommand_JSON(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run("new", "--title", "Add retries", "--repo", "/repo", "-o", "json")
	require.NoError(t, err)

	var got domain.Task
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, domain.StatusTodo, got.Status)
}

func TestNewCommand_RequiresTitle(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("new", "--repo", "/repo")

	require.Error(t, err)
	assert.Empty(t, env.tasks.Tasks)
}

func TestListCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Open task", domain.StatusTodo)
	env.addTask(t, "2", "Running task", domain.StatusInProgress)
	env.addTask(t, "3", "Done task", domain.StatusCompleted)

	out, _, err := env.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Open task")
	assert.Contains(t, out, "Running task")
	assert.NotContains(t, out, "Done task")

	out, _, err = env.run("list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Done task")

	out, _, err = env.run("list", "--status", "completed", "-o", "yaml")
	require.NoError(t, err)
	var got []domain.Task
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)

	_, _, err = env.run("list", "--status", "done")
	require.Error(t, err)
}

func TestStartCommand_StreamsAgentOutput(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Add retries", domain.StatusTodo)

	go func() {
		p := env.launcher.Next(reporter{t})
		if p == nil {
			return
		}
		p.WriteLine(`{"type":"text","content":"retries added"}`)
		p.Exit(nil)
	}()

	out, stderr, err := env.run("start", "1")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Started task #1 in /data/worktrees/1")
	assert.Contains(t, out, "user: Add retries")
	assert.Contains(t, out, "agent: retries added")
	assert.Contains(t, stderr, "completed")
	assert.Equal(t, domain.StatusInProgress, env.tasks.Tasks["1"].Status)
}

func TestStartCommand_AgentFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Add retries", domain.StatusTodo)

	go func() {
		p := env.launcher.Next(reporter{t})
		if p == nil {
			return
		}
		p.Exit(assert.AnError)
	}()

	_, _, err := env.run("start", "1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent failed")
}

func TestSendCommand_ContinuesConversation(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Add retries", domain.StatusTodo)

	go func() {
		for i := 0; i < 2; i++ {
			p := env.launcher.Next(reporter{t})
			if p == nil {
				return
			}
			p.WriteLine(`{"type":"text","content":"ok"}`)
			p.Exit(nil)
		}
	}()

	_, _, err := env.run("start", "1")
	require.NoError(t, err)
	first := env.tasks.Tasks["1"].LastProcessID

	out, stderr, err := env.run("send", "1", "add a test")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Continuing "+first)
	assert.Contains(t, out, "user: add a test")
	second := env.c.Registry.Get(env.tasks.Tasks["1"].LastProcessID)
	require.NotNil(t, second)
	assert.Equal(t, first, second.PreviousProcessID)
}

func TestShowCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Add retries", domain.StatusTodo)

	go func() {
		p := env.launcher.Next(reporter{t})
		if p == nil {
			return
		}
		p.WriteLine(`{"type":"text","content":"done"}`)
		p.Exit(nil)
	}()
	_, _, err := env.run("start", "1")
	require.NoError(t, err)

	out, _, err := env.run("show", "#1")
	require.NoError(t, err)
	assert.Contains(t, out, "# Task 1: Add retries")
	assert.Contains(t, out, "Status: In Progress")
	assert.Contains(t, out, "Worktree: /data/worktrees/1")
	assert.Contains(t, out, "agent: done")

	_, _, err = env.run("show", "9")
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDiffCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Add retries", domain.StatusInProgress)
	env.differ.Files = []domain.DiffFile{
		{Path: "client.go", Patch: "@@ -1 +1 @@\n-old\n+new\n", Added: 1, Removed: 1},
		{Path: "retry.go", Patch: "@@ -0,0 +1 @@\n+package client\n", Added: 1},
	}

	out, _, err := env.run("diff", "1", "--stat")
	require.NoError(t, err)
	assert.Contains(t, out, "client.go")
	assert.Contains(t, out, "2 files changed, +2 -1")

	out, _, err = env.run("diff", "1", "-o", "json")
	require.NoError(t, err)
	var files []domain.DiffFile
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	assert.Equal(t, env.differ.Files, files)
}

func TestCompleteAndCancelCommands(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Running", domain.StatusInProgress)
	env.addTask(t, "2", "Open", domain.StatusTodo)

	out, _, err := env.run("complete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Task #1 completed")
	assert.Equal(t, []string{"/data/worktrees/1"}, env.worktrees.Removed)

	out, _, err = env.run("cancel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Task #2 cancelled")

	_, _, err = env.run("complete", "2")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorktreeCommands(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Running", domain.StatusInProgress)
	env.worktrees.Dirs["7"] = true

	out, _, err := env.run("worktree", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "/data/worktrees/1")
	assert.Contains(t, out, "orphaned")

	out, _, err = env.run("worktree", "rm", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed /data/worktrees/7")
}

func TestPsAndKillCommands(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Running", domain.StatusInProgress)

	id := env.c.Registry.Create(domain.CreateProcessOptions{TaskID: "1", Message: "go"})

	out, _, err := env.run("ps", "--running")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, _, err = env.run("ps", id)
	require.NoError(t, err)
	assert.Contains(t, out, "user: go")

	out, _, err = env.run("kill", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Killed process "+id)
	assert.Equal(t, domain.ProcessKilled, env.c.Registry.Get(id).Status)

	out, _, err = env.run("ps", "--running")
	require.NoError(t, err)
	assert.NotContains(t, out, id)

	_, _, err = env.run("ps", "missing")
	require.ErrorIs(t, err, domain.ErrProcessNotFound)
}

func TestLogCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addTask(t, "1", "Running", domain.StatusInProgress)
	msg := domain.NewAgentMessage(domain.MessageText, "hello there")
	env.events.Events["1"] = []domain.Event{
		{Type: domain.EventProcessCreated, TaskID: "1", ProcessID: "p1", Time: now},
		{Type: domain.EventProcessMessage, TaskID: "1", ProcessID: "p1", Time: now, Message: &msg},
		{Type: domain.EventProcessStatus, TaskID: "1", ProcessID: "p1", Time: now, Status: domain.ProcessCompleted},
	}
	env.events.Skipped = 2

	out, stderr, err := env.run("log", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "agent: hello there")
	assert.Contains(t, out, "completed")
	assert.Contains(t, stderr, "skipped 2 unreadable log lines")

	out, _, err = env.run("log", "1", "-n", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "hello there")
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)
	env.manager.Local = domain.ConfigInfo{Path: "/data/config.toml", Exists: true}
	env.manager.Global = domain.ConfigInfo{Path: "/home/dev/.config/git-delegate/config.toml"}
	cfg := domain.NewDefaultConfig()
	cfg.Agent.Timeout = 30 * time.Minute
	cfg.DisabledProfiles = []string{"codex"}
	env.config.Config = cfg

	out, _, err := env.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "- /data/config.toml\n")
	assert.Contains(t, out, "config.toml (not found)")
	assert.Contains(t, out, "- claude (default)\n")
	assert.Contains(t, out, "- codex (disabled)\n")
	assert.Contains(t, out, "[Effective config]")
	assert.Contains(t, out, "30m0s")

	out, _, err = env.run("config", "init", "--global")
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file: /home/dev/.config/git-delegate/config.toml")

	env.manager.InitErr = domain.ErrConfigExists
	_, _, err = env.run("config", "init")
	require.ErrorIs(t, err, domain.ErrConfigExists)
}
