// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/runoshun/git-delegate/internal/domain"
	"github.com/runoshun/git-delegate/internal/infra/builtin"
	"github.com/runoshun/git-delegate/internal/infra/config"
	"github.com/runoshun/git-delegate/internal/infra/events"
	"github.com/runoshun/git-delegate/internal/infra/executor"
	"github.com/runoshun/git-delegate/internal/infra/git"
	"github.com/runoshun/git-delegate/internal/infra/jsonstore"
	"github.com/runoshun/git-delegate/internal/infra/logging"
	"github.com/runoshun/git-delegate/internal/infra/registry"
	"github.com/runoshun/git-delegate/internal/infra/runner"
	"github.com/runoshun/git-delegate/internal/infra/worktree"
	"github.com/runoshun/git-delegate/internal/usecase"
)

// DataDirEnv overrides the data root.
const DataDirEnv = "DELEGATE_DATA_DIR"

// ResolveDataRoot returns the application data root:
// $DELEGATE_DATA_DIR, else $XDG_DATA_HOME/git-delegate, else ~/.local/share/git-delegate.
func ResolveDataRoot() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, domain.AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data root: %w", err)
	}
	return filepath.Join(home, ".local", "share", domain.AppName), nil
}

// Deps are the port implementations a Container is built from.
type Deps struct {
	Tasks         domain.TaskRepository
	Archive       domain.ProcessArchive
	Git           domain.Git
	Differ        domain.Differ
	Worktrees     domain.WorktreeManager
	Scripts       domain.ScriptRunner
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	Profiles      domain.ProfileResolver
	Launcher      domain.ProcessLauncher
	EventLog      domain.EventLog
	Clock         domain.Clock
	Logger        domain.Logger
	Sinks         []events.Sink
	Timeout       time.Duration // Agent invocation timeout (0 = none)
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Tasks         domain.TaskRepository
	Archive       domain.ProcessArchive
	Git           domain.Git
	Differ        domain.Differ
	Worktrees     domain.WorktreeManager
	Scripts       domain.ScriptRunner
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	Profiles      domain.ProfileResolver
	Launcher      domain.ProcessLauncher
	EventLog      domain.EventLog
	Clock         domain.Clock
	Logger        domain.Logger

	// Pointer fields
	Events       *events.Broker
	Registry     *registry.Registry
	Orchestrator *usecase.Orchestrator

	closers []func() error

	// DataRoot is the directory holding the store, logs, events and worktrees.
	DataRoot string
}

// New creates a Container rooted at the resolved data root.
func New() (*Container, error) {
	dataRoot, err := ResolveDataRoot()
	if err != nil {
		return nil, err
	}
	return NewAt(dataRoot)
}

// NewAt creates a Container rooted at dataRoot.
func NewAt(dataRoot string) (*Container, error) {
	if err := os.MkdirAll(dataRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}

	configLoader := config.NewLoader(dataRoot)
	appConfig, err := configLoader.Load()
	if err != nil {
		// Commands still run on defaults; `config show` reports the error.
		appConfig = domain.NewDefaultConfig()
	}

	logger := logging.New(dataRoot, logging.ParseLevel(appConfig.Log.Level))
	exec := executor.NewClient()
	gitClient := git.NewClient(exec, logger)

	store := jsonstore.New(domain.StorePath(dataRoot))

	c := NewWithDeps(dataRoot, Deps{
		Tasks:         jsonstore.NewTasks(store),
		Archive:       jsonstore.NewProcesses(store),
		Git:           gitClient,
		Differ:        gitClient,
		Worktrees:     worktree.NewClient(gitClient, logger, dataRoot),
		Scripts:       runner.NewClient(),
		ConfigLoader:  configLoader,
		ConfigManager: config.NewManager(dataRoot),
		Profiles:      builtin.NewResolver(appConfig),
		Launcher:      exec,
		EventLog:      events.NewFileReader(dataRoot),
		Clock:         domain.RealClock{},
		Logger:        logger,
		Sinks:         []events.Sink{events.NewFileSink(dataRoot)},
		Timeout:       appConfig.Agent.Timeout,
	})
	c.closers = append(c.closers, logger.Close)

	if err := c.RestoreProcesses(); err != nil {
		logger.Warn("", "agent", err.Error())
	}
	return c, nil
}

// NewWithDeps creates a Container from explicit dependencies.
// The event broker, registry and orchestrator are built from them.
func NewWithDeps(dataRoot string, d Deps) *Container {
	if d.Logger == nil {
		d.Logger = domain.NopLogger{}
	}
	if d.Clock == nil {
		d.Clock = domain.RealClock{}
	}
	broker := events.NewBroker(d.Logger, d.Sinks...)
	reg := registry.New(d.Clock, broker)
	orch := usecase.NewOrchestrator(reg, d.Profiles, d.Launcher, d.Archive, d.Clock, d.Logger, d.Timeout)

	return &Container{
		Tasks:         d.Tasks,
		Archive:       d.Archive,
		Git:           d.Git,
		Differ:        d.Differ,
		Worktrees:     d.Worktrees,
		Scripts:       d.Scripts,
		ConfigLoader:  d.ConfigLoader,
		ConfigManager: d.ConfigManager,
		Profiles:      d.Profiles,
		Launcher:      d.Launcher,
		EventLog:      d.EventLog,
		Clock:         d.Clock,
		Logger:        d.Logger,
		Events:        broker,
		Registry:      reg,
		Orchestrator:  orch,
		DataRoot:      dataRoot,
	}
}

// RestoreProcesses loads archived processes into the registry so earlier
// conversations can be continued.
func (c *Container) RestoreProcesses() error {
	if c.Archive == nil {
		return nil
	}
	procs, err := c.Archive.ListProcesses()
	if err != nil {
		return fmt.Errorf("restore processes: %w", err)
	}
	c.Registry.Restore(procs)
	return nil
}

// Close releases open log files.
func (c *Container) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UseCase factory methods

// NewTaskUseCase returns a new NewTask use case.
func (c *Container) NewTaskUseCase() *usecase.NewTask {
	return usecase.NewNewTask(c.Tasks, c.Git, c.Clock, c.Logger)
}

// ListTasksUseCase returns a new ListTasks use case.
func (c *Container) ListTasksUseCase() *usecase.ListTasks {
	return usecase.NewListTasks(c.Tasks)
}

// ShowTaskUseCase returns a new ShowTask use case.
func (c *Container) ShowTaskUseCase() *usecase.ShowTask {
	return usecase.NewShowTask(c.Tasks, c.Registry)
}

// StartTaskUseCase returns a new StartTask use case.
func (c *Container) StartTaskUseCase() *usecase.StartTask {
	return usecase.NewStartTask(c.Tasks, c.Worktrees, c.Scripts, c.ConfigLoader, c.Orchestrator, c.Registry, c.Clock, c.Logger)
}

// SendMessageUseCase returns a new SendMessage use case.
func (c *Container) SendMessageUseCase() *usecase.SendMessage {
	return usecase.NewSendMessage(c.Tasks, c.Registry, c.Orchestrator, c.Clock, c.Logger)
}

// ShowDiffUseCase returns a new ShowDiff use case.
func (c *Container) ShowDiffUseCase() *usecase.ShowDiff {
	return usecase.NewShowDiff(c.Tasks, c.Differ)
}

// CloseTaskUseCase returns a new CloseTask use case.
func (c *Container) CloseTaskUseCase() *usecase.CloseTask {
	return usecase.NewCloseTask(c.Tasks, c.Worktrees, c.Registry, c.Orchestrator, c.Clock, c.Logger)
}

// ListWorktreesUseCase returns a new ListWorktrees use case.
func (c *Container) ListWorktreesUseCase() *usecase.ListWorktrees {
	return usecase.NewListWorktrees(c.Tasks, c.Worktrees)
}

// RemoveWorktreeUseCase returns a new RemoveWorktree use case.
func (c *Container) RemoveWorktreeUseCase() *usecase.RemoveWorktree {
	return usecase.NewRemoveWorktree(c.Tasks, c.Worktrees, c.Clock, c.Logger)
}

// ListProcessesUseCase returns a new ListProcesses use case.
func (c *Container) ListProcessesUseCase() *usecase.ListProcesses {
	return usecase.NewListProcesses(c.Registry)
}

// ShowProcessUseCase returns a new ShowProcess use case.
func (c *Container) ShowProcessUseCase() *usecase.ShowProcess {
	return usecase.NewShowProcess(c.Registry)
}

// KillProcessUseCase returns a new KillProcess use case.
func (c *Container) KillProcessUseCase() *usecase.KillProcess {
	return usecase.NewKillProcess(c.Registry, c.Orchestrator, c.Logger)
}

// ShowLogsUseCase returns a new ShowLogs use case.
func (c *Container) ShowLogsUseCase() *usecase.ShowLogs {
	return usecase.NewShowLogs(c.Tasks, c.EventLog)
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager, c.ConfigLoader)
}

// InitConfigUseCase returns a new InitConfig use case.
func (c *Container) InitConfigUseCase() *usecase.InitConfig {
	return usecase.NewInitConfig(c.ConfigManager)
}
