package domain

import "time"

// EventType names what happened.
type EventType string

const (
	EventProcessCreated EventType = "process.created"
	EventProcessMessage EventType = "process.message"
	EventProcessStatus  EventType = "process.status"
)

// Event is published whenever registry state changes.
// Fields are ordered to minimize memory padding.
type Event struct {
	Time      time.Time     `json:"time"`
	Message   *AgentMessage `json:"message,omitempty"`
	Type      EventType     `json:"type"`
	TaskID    string        `json:"task_id"`
	ProcessID string        `json:"process_id"`
	Status    ProcessStatus `json:"status,omitempty"`
}
