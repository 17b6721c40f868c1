package domain

import (
	"slices"
	"time"
)

// ProcessStatus represents the lifecycle state of an agent process.
type ProcessStatus string

const (
	ProcessRunning   ProcessStatus = "running"
	ProcessCompleted ProcessStatus = "completed"
	ProcessFailed    ProcessStatus = "failed"
	ProcessKilled    ProcessStatus = "killed"
)

// IsValid returns true if the status is a known value.
func (s ProcessStatus) IsValid() bool {
	switch s {
	case ProcessRunning, ProcessCompleted, ProcessFailed, ProcessKilled:
		return true
	}
	return false
}

// IsTerminal returns true once the process has left running.
func (s ProcessStatus) IsTerminal() bool {
	return s == ProcessCompleted || s == ProcessFailed || s == ProcessKilled
}

// CanTransitionTo enforces monotonic status: running may move to any terminal
// status, terminal statuses never change.
func (s ProcessStatus) CanTransitionTo(target ProcessStatus) bool {
	return s == ProcessRunning && target.IsTerminal()
}

// AgentProcess is one spawned agent invocation and its transcript.
// A task's history is the chain formed by PreviousProcessID back-references.
// Fields are ordered to minimize memory padding.
type AgentProcess struct {
	StartTime         time.Time      `json:"start_time" yaml:"start_time"`
	EndTime           *time.Time     `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	ID                string         `json:"id" yaml:"id"`
	TaskID            string         `json:"task_id" yaml:"task_id"`
	PreviousProcessID string         `json:"previous_process_id,omitempty" yaml:"previous_process_id,omitempty"`
	Profile           string         `json:"profile,omitempty" yaml:"profile,omitempty"`
	Status            ProcessStatus  `json:"status" yaml:"status"`
	Error             string         `json:"error,omitempty" yaml:"error,omitempty"`
	Messages          []AgentMessage `json:"messages" yaml:"messages"`
	RawOutput         []string       `json:"raw_output,omitempty" yaml:"raw_output,omitempty"`
}

// Clone returns a deep copy safe to hand out to readers.
func (p *AgentProcess) Clone() *AgentProcess {
	if p == nil {
		return nil
	}
	c := *p
	if p.EndTime != nil {
		end := *p.EndTime
		c.EndTime = &end
	}
	c.Messages = make([]AgentMessage, len(p.Messages))
	for i, m := range p.Messages {
		c.Messages[i] = m.Clone()
	}
	c.RawOutput = slices.Clone(p.RawOutput)
	return &c
}

// Summary returns the cheap enumeration view of the process.
func (p *AgentProcess) Summary() ProcessSummary {
	return ProcessSummary{
		StartTime:    p.StartTime,
		ID:           p.ID,
		TaskID:       p.TaskID,
		Status:       p.Status,
		MessageCount: len(p.Messages),
	}
}

// Duration returns how long the process ran, or has been running as of now.
func (p *AgentProcess) Duration(now time.Time) time.Duration {
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return now.Sub(p.StartTime)
}

// ProcessSummary is a lightweight view of an AgentProcess.
type ProcessSummary struct {
	StartTime    time.Time     `json:"start_time" yaml:"start_time"`
	ID           string        `json:"id" yaml:"id"`
	TaskID       string        `json:"task_id" yaml:"task_id"`
	Status       ProcessStatus `json:"status" yaml:"status"`
	MessageCount int           `json:"message_count" yaml:"message_count"`
}

// ProcessChain orders a task's processes by following PreviousProcessID
// back-references from the newest process. Processes not reachable from the
// newest one are appended after the chain in start order.
func ProcessChain(procs []*AgentProcess) []*AgentProcess {
	if len(procs) == 0 {
		return nil
	}
	byID := make(map[string]*AgentProcess, len(procs))
	for _, p := range procs {
		byID[p.ID] = p
	}

	sorted := slices.Clone(procs)
	slices.SortStableFunc(sorted, func(a, b *AgentProcess) int {
		return a.StartTime.Compare(b.StartTime)
	})

	var chain []*AgentProcess
	seen := make(map[string]bool, len(procs))
	for cur := sorted[len(sorted)-1]; cur != nil && !seen[cur.ID]; cur = byID[cur.PreviousProcessID] {
		seen[cur.ID] = true
		chain = append(chain, cur)
	}
	slices.Reverse(chain)

	for _, p := range sorted {
		if !seen[p.ID] {
			chain = append(chain, p)
		}
	}
	return chain
}
