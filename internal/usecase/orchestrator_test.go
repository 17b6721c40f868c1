package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-delegate/internal/domain"
)

func TestOrchestrator_Spawn_VisibleBeforeExit(t *testing.T) {
	f := newFixture(t)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{
		TaskID:       "t2",
		Message:      "hello",
		WorktreePath: "/data/worktrees/t2",
		Profile:      "backend-a",
	})
	require.NoError(t, err)
	proc := f.launcher.Next(t)

	got := f.registry.Get(id)
	require.NotNil(t, got)
	assert.Equal(t, domain.ProcessRunning, got.Status)
	assert.Equal(t, "t2", got.TaskID)
	assert.Equal(t, "backend-a", got.Profile)
	require.NotEmpty(t, got.Messages)
	assert.Equal(t, domain.SenderUser, got.Messages[0].Sender)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Nil(t, got.EndTime)

	inv := f.launcher.LastInvocation()
	require.NotNil(t, inv)
	assert.Equal(t, "/data/worktrees/t2", inv.Dir)
	assert.Equal(t, []string{"hello"}, inv.Args, "no prior context means the message is the prompt")

	proc.Exit(nil)
	final := f.wait(t, id)
	assert.Equal(t, domain.ProcessCompleted, final.Status)
	require.NotNil(t, final.EndTime)

	archived := f.archive.Get(id)
	require.NotNil(t, archived)
	assert.Equal(t, domain.ProcessCompleted, archived.Status)
}

func TestOrchestrator_Spawn_StreamsOutput(t *testing.T) {
	f := newFixture(t)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)

	proc.WriteLine(`{"type":"text","content":"working on it"}`)
	proc.WriteLine(`not a record`)
	proc.WriteLine(``)
	proc.WriteLine(`{"type":"error","content":"lint failed"}`)
	proc.WriteLine(`{"type":"usage"}`)
	proc.WriteStderr("warning: slow disk")
	proc.Exit(nil)

	p := f.wait(t, id)
	require.Len(t, p.Messages, 3)
	assert.Equal(t, domain.SenderUser, p.Messages[0].Sender)

	assert.Equal(t, "working on it", p.Messages[1].Content)
	assert.Equal(t, domain.MessageText, p.Messages[1].Type)
	assert.Equal(t, domain.SenderAgent, p.Messages[1].Sender)
	assert.NotEmpty(t, p.Messages[1].ID)

	assert.Equal(t, "lint failed", p.Messages[2].Content)
	assert.Equal(t, domain.SenderSystem, p.Messages[2].Sender)

	assert.Contains(t, p.RawOutput, "not a record")
	assert.Contains(t, p.RawOutput, `{"type":"usage"}`, "records without a message are kept")
	assert.Contains(t, p.RawOutput, stderrPrefix+"warning: slow disk")
	assert.Equal(t, domain.ProcessCompleted, p.Status)

	var created, messages, statuses int
	for _, ev := range f.events.Events() {
		switch ev.Type {
		case domain.EventProcessCreated:
			created++
		case domain.EventProcessMessage:
			messages++
		case domain.EventProcessStatus:
			statuses++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 2, messages)
	assert.Equal(t, 1, statuses)
}

func TestOrchestrator_Spawn_NonzeroExitFails(t *testing.T) {
	f := newFixture(t)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	f.launcher.Next(t).Exit(errors.New("exit status 2"))

	p := f.wait(t, id)
	assert.Equal(t, domain.ProcessFailed, p.Status)
	assert.Equal(t, "exit status 2", p.Error)
	require.NotNil(t, f.archive.Get(id))
}

func TestOrchestrator_Spawn_LaunchFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.Err = errors.New("exec: \"mock-agent\": executable file not found in $PATH")

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch agent")
	require.NotEmpty(t, id, "the registered process is reported even when launch fails")

	p := f.registry.Get(id)
	require.NotNil(t, p)
	assert.Equal(t, domain.ProcessFailed, p.Status)
	assert.NotNil(t, p.EndTime)
	assert.Contains(t, p.Error, "executable file not found")
	assert.NotNil(t, f.archive.Get(id))
	assert.True(t, f.logger.HasEntry("error", "spawn "+id+" failed"))

	// Wait returns at once for processes that never ran.
	assert.Equal(t, domain.ProcessFailed, f.wait(t, id).Status)
}

func TestOrchestrator_Spawn_PlanFailure(t *testing.T) {
	f := newFixture(t)
	f.profiles.Profiles["backend-a"].PlanErr = domain.ErrEmptyCommand

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})

	require.ErrorIs(t, err, domain.ErrEmptyCommand)
	assert.Equal(t, domain.ProcessFailed, f.registry.Get(id).Status)
	assert.Empty(t, f.launcher.Invocations)
}

func TestOrchestrator_Spawn_Preconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt", Profile: "nope"})
	require.ErrorIs(t, err, domain.ErrProfileNotFound)

	_, err = f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "  ", WorktreePath: "/wt"})
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	assert.Empty(t, f.registry.ListSummaries(), "precondition failures register nothing")
}

func TestOrchestrator_Spawn_OutlivesCallerContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	id, err := f.orch.Spawn(ctx, SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)
	cancel()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, domain.ProcessRunning, f.registry.Get(id).Status)

	proc.Exit(nil)
	assert.Equal(t, domain.ProcessCompleted, f.wait(t, id).Status)
}

func TestOrchestrator_Spawn_Timeout(t *testing.T) {
	f := newFixtureWithTimeout(t, 50*time.Millisecond)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	f.launcher.Next(t)

	p := f.wait(t, id)
	assert.Equal(t, domain.ProcessFailed, p.Status)
	assert.Contains(t, p.Error, "timed out")
}

func TestOrchestrator_Kill(t *testing.T) {
	f := newFixture(t)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)

	require.NoError(t, f.orch.Kill(id))
	assert.Equal(t, 1, proc.Kills())

	p := f.wait(t, id)
	assert.Equal(t, domain.ProcessKilled, p.Status, "exit after kill must not overwrite the status")
	assert.Equal(t, domain.ProcessKilled, f.archive.Get(id).Status)
	assert.Nil(t, f.registry.Handle(id))

	err = f.orch.Kill(id)
	require.ErrorIs(t, err, domain.ErrInvalidProcessStatus)
	assert.Equal(t, 1, proc.Kills())

	require.ErrorIs(t, f.orch.Kill("missing"), domain.ErrProcessNotFound)
}

func TestOrchestrator_Continue_PreservesOrder(t *testing.T) {
	f := newFixture(t)

	first, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "m1", WorktreePath: "/wt", Profile: "backend-b"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)
	proc.WriteLine(`{"type":"text","content":"m2"}`)
	proc.Exit(nil)
	f.wait(t, first)

	second, err := f.orch.Continue(context.Background(), ContinueInput{ProcessID: first, Message: "m3", WorktreePath: "/wt"})
	require.NoError(t, err)
	next := f.launcher.Next(t)

	assert.Equal(t, domain.ProcessCompleted, f.registry.Get(first).Status)

	p := f.registry.Get(second)
	require.NotNil(t, p)
	assert.Equal(t, first, p.PreviousProcessID)
	assert.Equal(t, "backend-b", p.Profile, "profile carries over")
	assert.Equal(t, "m3", p.Messages[0].Content)

	prompt := f.profiles.Profiles["backend-b"].LastRequest().Prompt
	i1 := strings.Index(prompt, "user: m1")
	i2 := strings.Index(prompt, "agent: m2")
	i3 := strings.LastIndex(prompt, "m3")
	require.GreaterOrEqual(t, i1, 0, prompt)
	require.Greater(t, i2, i1, prompt)
	require.Greater(t, i3, i2, prompt)

	next.Exit(nil)
	f.wait(t, second)
}

func TestOrchestrator_Continue_RunningPredecessor(t *testing.T) {
	f := newFixture(t)

	first, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "m1", WorktreePath: "/wt"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)

	second, err := f.orch.Continue(context.Background(), ContinueInput{ProcessID: first, Message: "again", WorktreePath: "/wt"})
	require.NoError(t, err)
	next := f.launcher.Next(t)

	assert.Equal(t, 1, proc.Kills(), "the running predecessor is terminated")
	p := f.wait(t, first)
	assert.Equal(t, domain.ProcessCompleted, p.Status)

	next.Exit(nil)
	assert.Equal(t, domain.ProcessCompleted, f.wait(t, second).Status)
}

func TestOrchestrator_Continue_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Continue(context.Background(), ContinueInput{ProcessID: "missing", Message: "x", WorktreePath: "/wt"})
	require.ErrorIs(t, err, domain.ErrProcessNotFound)

	_, err = f.orch.Continue(context.Background(), ContinueInput{ProcessID: "missing", Message: "", WorktreePath: "/wt"})
	require.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestOrchestrator_Continue_RestoredProcess(t *testing.T) {
	f := newFixture(t)
	end := t0.Add(time.Minute)
	f.registry.Restore([]*domain.AgentProcess{{
		ID: "old", TaskID: "t1", Status: domain.ProcessCompleted, Profile: "backend-a",
		StartTime: t0, EndTime: &end,
		Messages: []domain.AgentMessage{
			{Sender: domain.SenderUser, Content: "first", Type: domain.MessageText},
			{Sender: domain.SenderAgent, Content: "done", Type: domain.MessageText},
		},
	}})

	id, err := f.orch.Continue(context.Background(), ContinueInput{ProcessID: "old", Message: "more", WorktreePath: "/wt"})
	require.NoError(t, err)
	f.launcher.Next(t).Exit(nil)

	p := f.wait(t, id)
	assert.Equal(t, "old", p.PreviousProcessID)
	assert.Contains(t, f.profiles.Profiles["backend-a"].LastRequest().Prompt, "user: first\nagent: done")
}

func TestOrchestrator_Wait(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Wait(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrProcessNotFound)

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	proc := f.launcher.Next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.orch.Wait(ctx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	proc.Exit(nil)
	assert.Equal(t, domain.ProcessCompleted, f.wait(t, id).Status)
}

func TestOrchestrator_ForgetsFinishedProcesses(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
		require.NoError(t, err)
		f.launcher.Next(t).Exit(nil)
		assert.Equal(t, domain.ProcessCompleted, f.wait(t, id).Status)

		// Waiting again answers from the registry.
		again, err := f.orch.Wait(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.ProcessCompleted, again.Status)
	}

	f.orch.mu.Lock()
	defer f.orch.mu.Unlock()
	assert.Empty(t, f.orch.runs)
}

func TestOrchestrator_ArchiveFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.archive.SaveErr = errors.New("disk full")

	id, err := f.orch.Spawn(context.Background(), SpawnInput{TaskID: "t1", Message: "go", WorktreePath: "/wt"})
	require.NoError(t, err)
	f.launcher.Next(t).Exit(nil)

	assert.Equal(t, domain.ProcessCompleted, f.wait(t, id).Status)
	assert.True(t, f.logger.HasEntry("warn", "disk full"))
}
