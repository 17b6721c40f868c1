// Package registry holds the in-memory table of agent processes.
package registry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runoshun/git-delegate/internal/domain"
)

// entry pairs a process record with its live child, if any.
type entry struct {
	proc   *domain.AgentProcess
	handle domain.ProcessHandle
}

// Registry is the concurrency-safe process table.
// One mutex guards the whole map and is never held across I/O; events are
// published after it is released.
type Registry struct {
	clock     domain.Clock
	events    domain.EventPublisher
	newID     func() string
	processes map[string]*entry
	order     []string // Insertion order of process IDs
	mu        sync.Mutex
}

// New creates an empty registry. events may be nil.
func New(clock domain.Clock, events domain.EventPublisher) *Registry {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &Registry{
		clock:     clock,
		events:    events,
		newID:     uuid.NewString,
		processes: make(map[string]*entry),
	}
}

// Ensure Registry implements domain.ProcessRegistry interface.
var _ domain.ProcessRegistry = (*Registry)(nil)

func (r *Registry) publish(ev domain.Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(ev)
}

// Create registers a running process whose log starts with the user's message.
func (r *Registry) Create(opts domain.CreateProcessOptions) string {
	now := r.clock.Now()
	msg := domain.AgentMessage{
		ID:        r.newID(),
		Sender:    domain.SenderUser,
		Content:   opts.Message,
		Timestamp: now,
		Type:      domain.MessageText,
	}
	proc := &domain.AgentProcess{
		ID:                r.newID(),
		TaskID:            opts.TaskID,
		PreviousProcessID: opts.PreviousProcessID,
		Profile:           opts.Profile,
		Status:            domain.ProcessRunning,
		StartTime:         now,
		Messages:          []domain.AgentMessage{msg},
	}

	r.mu.Lock()
	r.processes[proc.ID] = &entry{proc: proc}
	r.order = append(r.order, proc.ID)
	r.mu.Unlock()

	r.publish(domain.Event{
		Time:      now,
		Type:      domain.EventProcessCreated,
		TaskID:    proc.TaskID,
		ProcessID: proc.ID,
		Status:    domain.ProcessRunning,
		Message:   &msg,
	})
	return proc.ID
}

// Get returns a copy of the process. Returns nil if not found.
func (r *Registry) Get(id string) *domain.AgentProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.processes[id]
	if !ok {
		return nil
	}
	return e.proc.Clone()
}

// GetByTask returns copies of every process of the task in insertion order.
func (r *Registry) GetByTask(taskID string) []*domain.AgentProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	var procs []*domain.AgentProcess
	for _, id := range r.order {
		if p := r.processes[id].proc; p.TaskID == taskID {
			procs = append(procs, p.Clone())
		}
	}
	return procs
}

// Latest returns a copy of the task's most recently started process, or nil.
func (r *Registry) Latest(taskID string) *domain.AgentProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.AgentProcess
	for _, id := range r.order {
		p := r.processes[id].proc
		if p.TaskID != taskID {
			continue
		}
		if latest == nil || !p.StartTime.Before(latest.StartTime) {
			latest = p
		}
	}
	return latest.Clone()
}

// ListSummaries returns summaries of all processes in insertion order.
func (r *Registry) ListSummaries() []domain.ProcessSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	summaries := make([]domain.ProcessSummary, 0, len(r.order))
	for _, id := range r.order {
		summaries = append(summaries, r.processes[id].proc.Summary())
	}
	return summaries
}

// AppendMessage appends msg to the process's log, assigning an ID and
// timestamp when missing.
func (r *Registry) AppendMessage(id string, msg domain.AgentMessage) error {
	if msg.ID == "" {
		msg.ID = r.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.clock.Now()
	}
	if msg.Sender == "" {
		msg.Sender = domain.SenderForType(msg.Type)
	}
	msg = msg.Clone()

	r.mu.Lock()
	e, ok := r.processes[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("append message to %s: %w", id, domain.ErrProcessNotFound)
	}
	e.proc.Messages = append(e.proc.Messages, msg)
	taskID := e.proc.TaskID
	r.mu.Unlock()

	published := msg.Clone()
	r.publish(domain.Event{
		Time:      msg.Timestamp,
		Type:      domain.EventProcessMessage,
		TaskID:    taskID,
		ProcessID: id,
		Message:   &published,
	})
	return nil
}

// AppendRawOutput retains an output line that did not parse as a message.
func (r *Registry) AppendRawOutput(id, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.processes[id]
	if !ok {
		return fmt.Errorf("append output to %s: %w", id, domain.ErrProcessNotFound)
	}
	e.proc.RawOutput = append(e.proc.RawOutput, line)
	return nil
}

// SetStatus moves a running process to a terminal status and records its end
// time. A zero endTime means now. Terminal statuses never change again.
func (r *Registry) SetStatus(id string, status domain.ProcessStatus, endTime time.Time, reason string) error {
	if endTime.IsZero() {
		endTime = r.clock.Now()
	}

	r.mu.Lock()
	e, ok := r.processes[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("set status of %s: %w", id, domain.ErrProcessNotFound)
	}
	if !e.proc.Status.CanTransitionTo(status) {
		current := e.proc.Status
		r.mu.Unlock()
		return fmt.Errorf("%w: process %s is %s, cannot become %s",
			domain.ErrInvalidProcessStatus, id, current, status)
	}
	e.proc.Status = status
	e.proc.EndTime = &endTime
	e.proc.Error = reason
	e.handle = nil
	taskID := e.proc.TaskID
	r.mu.Unlock()

	r.publish(domain.Event{
		Time:      endTime,
		Type:      domain.EventProcessStatus,
		TaskID:    taskID,
		ProcessID: id,
		Status:    status,
	})
	return nil
}

// Kill marks the process killed with an end time of now.
// Signalling the child is the owner's job; see Handle.
func (r *Registry) Kill(id string) error {
	return r.SetStatus(id, domain.ProcessKilled, r.clock.Now(), "killed")
}

// AttachHandle records the live child of a running process.
func (r *Registry) AttachHandle(id string, h domain.ProcessHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.processes[id]
	if !ok {
		return fmt.Errorf("attach handle to %s: %w", id, domain.ErrProcessNotFound)
	}
	if e.proc.Status.IsTerminal() {
		return fmt.Errorf("%w: process %s is %s", domain.ErrInvalidProcessStatus, id, e.proc.Status)
	}
	e.handle = h
	return nil
}

// Handle returns the live child of a process, or nil once it has finished.
func (r *Registry) Handle(id string) domain.ProcessHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.processes[id]; ok {
		return e.handle
	}
	return nil
}

// Restore loads previously archived processes. Records already present are
// skipped. Restored processes have no live child, so any still marked running
// are failed.
func (r *Registry) Restore(procs []*domain.AgentProcess) {
	sorted := slices.Clone(procs)
	slices.SortStableFunc(sorted, func(a, b *domain.AgentProcess) int {
		return a.StartTime.Compare(b.StartTime)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range sorted {
		if p == nil || p.ID == "" {
			continue
		}
		if _, exists := r.processes[p.ID]; exists {
			continue
		}
		c := p.Clone()
		if c.Status == domain.ProcessRunning || !c.Status.IsValid() {
			end := c.StartTime
			if c.EndTime != nil {
				end = *c.EndTime
			}
			c.Status = domain.ProcessFailed
			c.EndTime = &end
			c.Error = "process did not finish before the previous session ended"
		}
		r.processes[c.ID] = &entry{proc: c}
		r.order = append(r.order, c.ID)
	}
}
