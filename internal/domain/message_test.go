package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderForType(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want Sender
	}{
		{MessageText, SenderAgent},
		{MessageFileRead, SenderAgent},
		{MessageFileEdit, SenderAgent},
		{MessageToolCall, SenderAgent},
		{MessageSystem, SenderSystem},
		{MessageError, SenderSystem},
		{MessageType("custom"), SenderAgent},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, SenderForType(tt.typ))
		})
	}
}

func TestParseMessageType(t *testing.T) {
	assert.Equal(t, MessageText, ParseMessageType(""))
	assert.Equal(t, MessageText, ParseMessageType("assistant"))
	assert.Equal(t, MessageFileEdit, ParseMessageType("write"))
	assert.Equal(t, MessageToolCall, ParseMessageType("tool_use"))
	assert.Equal(t, MessageSystem, ParseMessageType("system"))
	assert.Equal(t, MessageType("thinking"), ParseMessageType("thinking"))
}

func TestNewAgentMessage(t *testing.T) {
	msg := NewAgentMessage(MessageError, "boom")
	assert.Equal(t, SenderSystem, msg.Sender)
	assert.Equal(t, "boom", msg.Content)
	assert.Empty(t, msg.ID)
}
