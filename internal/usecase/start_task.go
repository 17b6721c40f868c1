package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/usecase/shared"
)

// StartTaskInput contains the parameters for starting a task.
type StartTaskInput struct {
	TaskID  string // Task ID to start
	Profile string // Profile override (optional, falls back to the task's, then the default)
	Model   string // Model override (optional)
}

// StartTaskOutput contains the result of starting a task.
type StartTaskOutput struct {
	Task      *domain.Task
	Worktree  *domain.Worktree
	ProcessID string // First agent process of the task
}

// StartTask is the use case for starting a task: it creates the task's
// worktree, runs the configured setup script and spawns the agent.
type StartTask struct {
	tasks        domain.TaskRepository
	worktrees    domain.WorktreeManager
	scripts      domain.ScriptRunner
	configLoader domain.ConfigLoader
	orchestrator *Orchestrator
	registry     domain.ProcessRegistry
	clock        domain.Clock
	logger       domain.Logger
}

// NewStartTask creates a new StartTask use case.
func NewStartTask(
	tasks domain.TaskRepository,
	worktrees domain.WorktreeManager,
	scripts domain.ScriptRunner,
	configLoader domain.ConfigLoader,
	orchestrator *Orchestrator,
	registry domain.ProcessRegistry,
	clock domain.Clock,
	logger domain.Logger,
) *StartTask {
	return &StartTask{
		tasks:        tasks,
		worktrees:    worktrees,
		scripts:      scripts,
		configLoader: configLoader,
		orchestrator: orchestrator,
		registry:     registry,
		clock:        clock,
		logger:       logger,
	}
}

// Execute starts a task with the given input.
// Preconditions:
//   - Task exists and is todo
//
// Processing:
//   - Create a fresh worktree from the repository's HEAD
//   - Run [worktree] setup_command inside it, if configured
//   - Spawn the agent with the task prompt
//
// Any failure removes the worktree again and leaves the task todo.
func (uc *StartTask) Execute(ctx context.Context, in StartTaskInput) (*StartTaskOutput, error) {
	task, err := shared.GetTask(uc.tasks, in.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.Status.CanTransitionTo(domain.StatusInProgress) {
		return nil, fmt.Errorf("start task %s (%s): %w", task.ID, task.Status, domain.ErrInvalidTransition)
	}

	cfg, err := uc.configLoader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	wt, err := uc.worktrees.Create(ctx, task.ID, task.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("create worktree: %w", err)
	}

	if script := cfg.Worktree.SetupCommand; script != "" {
		uc.logger.Info(task.ID, "worktree", "running setup command")
		env := []string{
			"DELEGATE_TASK_ID=" + task.ID,
			"DELEGATE_REPO=" + task.RepoPath,
			"DELEGATE_WORKTREE=" + wt.Path,
		}
		if err := uc.scripts.Run(ctx, wt.Path, script, env...); err != nil {
			uc.cleanup(ctx, task, wt)
			return nil, fmt.Errorf("setup worktree: %w", err)
		}
	}

	profile := in.Profile
	if profile == "" {
		profile = task.Profile
	}
	processID, err := uc.orchestrator.Spawn(ctx, SpawnInput{
		TaskID:       task.ID,
		Message:      task.Prompt(cfg.Agent.Prompt),
		WorktreePath: wt.Path,
		Profile:      profile,
		Model:        in.Model,
	})
	if err != nil {
		uc.cleanup(ctx, task, wt)
		if processID != "" {
			task.LastProcessID = processID
			task.Updated = uc.clock.Now()
			if saveErr := uc.tasks.Save(task); saveErr != nil {
				uc.logger.Warn(task.ID, "task", fmt.Sprintf("save failed start: %v", saveErr))
			}
		}
		return nil, fmt.Errorf("spawn agent: %w", err)
	}

	task.Status = domain.StatusInProgress
	task.Branch = wt.Branch
	task.WorktreePath = wt.Path
	task.LastProcessID = processID
	if p := uc.registry.Get(processID); p != nil {
		task.Profile = p.Profile
	}
	task.Updated = uc.clock.Now()
	if err := uc.tasks.Save(task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	uc.logger.Info(task.ID, "task", fmt.Sprintf("started in %s (process %s)", wt.Path, processID))
	return &StartTaskOutput{Task: task, Worktree: wt, ProcessID: processID}, nil
}

// cleanup removes a worktree created by a start that failed.
func (uc *StartTask) cleanup(ctx context.Context, task *domain.Task, wt *domain.Worktree) {
	if err := uc.worktrees.Remove(ctx, wt.Path, task.RepoPath); err != nil {
		uc.logger.Warn(task.ID, "worktree", fmt.Sprintf("remove after failed start: %v", err))
	}
}
