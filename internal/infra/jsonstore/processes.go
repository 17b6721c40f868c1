package jsonstore

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/runoshun/git-delegate/internal/domain"
)

const processesCollection = "processes"

// Processes implements domain.ProcessArchive on top of a Store.
type Processes struct {
	store *Store
}

// Ensure Processes implements ProcessArchive.
var _ domain.ProcessArchive = (*Processes)(nil)

// NewProcesses returns the process archive view of store.
func NewProcesses(store *Store) *Processes {
	return &Processes{store: store}
}

// SaveProcess stores a snapshot of the process, replacing older snapshots.
func (r *Processes) SaveProcess(p *domain.AgentProcess) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("archive process: %w", domain.ErrProcessNotFound)
	}
	return r.store.Set(processesCollection, p.ID, p)
}

// ListProcesses returns all archived processes ordered by start time.
func (r *Processes) ListProcesses() ([]*domain.AgentProcess, error) {
	var procs []*domain.AgentProcess
	err := r.store.scan(processesCollection, func(key string, raw json.RawMessage) error {
		var p domain.AgentProcess
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode process %s: %w", key, err)
		}
		p.ID = key
		procs = append(procs, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(procs, func(a, b *domain.AgentProcess) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return procs, nil
}
