package domain

import (
	"maps"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// MessageType classifies a message's content.
type MessageType string

const (
	MessageText       MessageType = "text"
	MessageFileRead   MessageType = "file_read"
	MessageFileEdit   MessageType = "file_edit"
	MessageToolCall   MessageType = "tool_call"
	MessageToolResult MessageType = "tool_result"
	MessageSystem     MessageType = "system"
	MessageError      MessageType = "error"
)

// SenderForType derives the sender of an agent-emitted message from its type.
func SenderForType(t MessageType) Sender {
	switch t {
	case MessageSystem, MessageError:
		return SenderSystem
	default:
		return SenderAgent
	}
}

// ParseMessageType maps a free-form type string to a MessageType.
// Unknown values are kept verbatim.
func ParseMessageType(s string) MessageType {
	switch s {
	case "", "message", "assistant", "agent":
		return MessageText
	case "read":
		return MessageFileRead
	case "edit", "write":
		return MessageFileEdit
	case "tool", "tool_use":
		return MessageToolCall
	}
	return MessageType(s)
}

// AgentMessage is one entry in a process's conversation log.
// Fields are ordered to minimize memory padding.
type AgentMessage struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ID        string         `json:"id" yaml:"id"`
	Sender    Sender         `json:"sender" yaml:"sender"`
	Content   string         `json:"content" yaml:"content"`
	Type      MessageType    `json:"message_type" yaml:"message_type"`
}

// NewAgentMessage builds an agent-emitted message with its sender derived
// from the type. ID and timestamp are assigned by the registry.
func NewAgentMessage(t MessageType, content string) AgentMessage {
	return AgentMessage{
		Sender:  SenderForType(t),
		Content: content,
		Type:    t,
	}
}

// Clone returns a copy with its own metadata map.
func (m AgentMessage) Clone() AgentMessage {
	m.Metadata = maps.Clone(m.Metadata)
	return m
}
