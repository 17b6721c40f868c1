package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTranscript(t *testing.T) {
	msgs := []AgentMessage{
		{Sender: SenderUser, Content: "fix the bug"},
		{Sender: SenderAgent, Content: "done"},
		{Sender: SenderSystem, Content: "exited"},
	}

	assert.Equal(t, "user: fix the bug\nagent: done\nsystem: exited", RenderTranscript(msgs))
	assert.Empty(t, RenderTranscript(nil))
}

func TestBuildPrompt(t *testing.T) {
	t.Run("no context returns message", func(t *testing.T) {
		got, err := BuildPrompt("hello", "")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("whitespace context returns message", func(t *testing.T) {
		got, err := BuildPrompt("hello", "  \n")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("context precedes message", func(t *testing.T) {
		got, err := BuildPrompt("next step", "user: m1\nagent: m2")
		require.NoError(t, err)

		i1 := strings.Index(got, "user: m1")
		i2 := strings.Index(got, "agent: m2")
		i3 := strings.Index(got, "next step")
		assert.True(t, i1 >= 0 && i1 < i2 && i2 < i3, "unexpected order in %q", got)
	})
}
