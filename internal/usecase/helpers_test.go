package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/infra/registry"
	"github.com/runoshun/git-delegate/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture wires the use cases to mocks around a real registry and orchestrator.
type fixture struct {
	tasks     *testutil.MockTaskRepository
	worktrees *testutil.MockWorktreeManager
	scripts   *testutil.MockScriptRunner
	config    *testutil.MockConfigLoader
	registry  *registry.Registry
	profiles  *testutil.MockProfileResolver
	launcher  *testutil.MockLauncher
	archive   *testutil.MockProcessArchive
	events    *testutil.MockEventPublisher
	logger    *testutil.MockLogger
	clock     *testutil.MockClock
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTimeout(t, 0)
}

func newFixtureWithTimeout(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		tasks:     testutil.NewMockTaskRepository(),
		worktrees: testutil.NewMockWorktreeManager("/data/worktrees"),
		scripts:   &testutil.MockScriptRunner{},
		config:    &testutil.MockConfigLoader{},
		profiles:  testutil.NewMockProfileResolver("backend-a", "backend-b"),
		launcher:  testutil.NewMockLauncher(),
		archive:   testutil.NewMockProcessArchive(),
		events:    &testutil.MockEventPublisher{},
		logger:    &testutil.MockLogger{},
		clock:     &testutil.MockClock{NowTime: t0},
	}
	f.registry = registry.New(f.clock, f.events)
	f.orch = NewOrchestrator(f.registry, f.profiles, f.launcher, f.archive, f.clock, f.logger, timeout)
	return f
}

// addTask stores a task and returns it.
func (f *fixture) addTask(t *testing.T, id string, status domain.Status) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:       id,
		Title:    "Task " + id,
		RepoPath: "/repo",
		Status:   status,
		Created:  t0,
	}
	if status == domain.StatusInProgress {
		task.Branch = domain.BranchName(id)
		task.WorktreePath = f.worktrees.Path(id)
		f.worktrees.Dirs[id] = true
	}
	require.NoError(t, f.tasks.Save(task))
	return task
}

// wait blocks until supervision of the process ends.
func (f *fixture) wait(t *testing.T, id string) *domain.AgentProcess {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := f.orch.Wait(ctx, id)
	require.NoError(t, err)
	return p
}
