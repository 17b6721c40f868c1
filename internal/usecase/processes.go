package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/git-delegate/internal/domain"
)

// ListProcessesInput contains the parameters for listing agent processes.
type ListProcessesInput struct {
	TaskID      string // Only processes of this task (optional)
	RunningOnly bool   // Only running processes
}

// ListProcessesOutput contains process summaries in start order.
type ListProcessesOutput struct {
	Processes []domain.ProcessSummary
}

// ListProcesses is the use case for enumerating agent processes.
type ListProcesses struct {
	registry domain.ProcessRegistry
}

// NewListProcesses creates a new ListProcesses use case.
func NewListProcesses(registry domain.ProcessRegistry) *ListProcesses {
	return &ListProcesses{registry: registry}
}

// Execute lists process summaries matching the input.
func (uc *ListProcesses) Execute(_ context.Context, in ListProcessesInput) (*ListProcessesOutput, error) {
	all := uc.registry.ListSummaries()
	out := make([]domain.ProcessSummary, 0, len(all))
	for _, s := range all {
		if in.TaskID != "" && s.TaskID != in.TaskID {
			continue
		}
		if in.RunningOnly && s.Status != domain.ProcessRunning {
			continue
		}
		out = append(out, s)
	}
	return &ListProcessesOutput{Processes: out}, nil
}

// ShowProcessInput contains the parameters for showing a process.
type ShowProcessInput struct {
	ProcessID string // Process ID (required)
}

// ShowProcessOutput contains the full process record.
type ShowProcessOutput struct {
	Process *domain.AgentProcess
}

// ShowProcess is the use case for inspecting one agent process.
type ShowProcess struct {
	registry domain.ProcessRegistry
}

// NewShowProcess creates a new ShowProcess use case.
func NewShowProcess(registry domain.ProcessRegistry) *ShowProcess {
	return &ShowProcess{registry: registry}
}

// Execute returns a copy of the process.
func (uc *ShowProcess) Execute(_ context.Context, in ShowProcessInput) (*ShowProcessOutput, error) {
	p := uc.registry.Get(in.ProcessID)
	if p == nil {
		return nil, fmt.Errorf("process %s: %w", in.ProcessID, domain.ErrProcessNotFound)
	}
	return &ShowProcessOutput{Process: p}, nil
}

// KillProcessInput contains the parameters for killing a process.
type KillProcessInput struct {
	ProcessID string // Process ID (required)
}

// KillProcessOutput contains the killed process.
type KillProcessOutput struct {
	Process *domain.AgentProcess
}

// KillProcess is the use case for terminating a running agent.
type KillProcess struct {
	registry     domain.ProcessRegistry
	orchestrator *Orchestrator
	logger       domain.Logger
}

// NewKillProcess creates a new KillProcess use case.
func NewKillProcess(registry domain.ProcessRegistry, orchestrator *Orchestrator, logger domain.Logger) *KillProcess {
	return &KillProcess{registry: registry, orchestrator: orchestrator, logger: logger}
}

// Execute marks the process killed and signals its child.
func (uc *KillProcess) Execute(_ context.Context, in KillProcessInput) (*KillProcessOutput, error) {
	p := uc.registry.Get(in.ProcessID)
	if p == nil {
		return nil, fmt.Errorf("process %s: %w", in.ProcessID, domain.ErrProcessNotFound)
	}
	if err := uc.orchestrator.Kill(p.ID); err != nil {
		return nil, fmt.Errorf("kill process %s: %w", p.ID, err)
	}
	uc.logger.Info(p.TaskID, "agent", "killed process "+p.ID)
	return &KillProcessOutput{Process: uc.registry.Get(p.ID)}, nil
}
