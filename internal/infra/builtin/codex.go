package builtin

import (
	"fmt"
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// codex drives the OpenAI Codex CLI non-interactively with JSONL events.
type codex struct {
	command string
	model   string
	args    []string
}

func newCodex(cfg domain.ProfileConfig) *codex {
	c := &codex{command: "codex", model: cfg.Model, args: cfg.Args}
	if cfg.Command != "" {
		c.command = cfg.Command
	}
	return c
}

func (c *codex) Name() string { return domain.ProfileCodex }

// Plan builds: codex exec --json --cd <dir> [-m model] [args...] -- <prompt>
func (c *codex) Plan(req domain.InvocationRequest) (*domain.Invocation, error) {
	args := []string{"exec", "--json", "--cd", req.Dir}
	if model := firstNonEmpty(req.Model, c.model); model != "" {
		args = append(args, "-m", model)
	}
	args = append(args, c.args...)
	args = append(args, "--", req.Prompt)
	return &domain.Invocation{Program: c.command, Dir: req.Dir, Args: args}, nil
}

// codexEvent is one line of `codex exec --json` output.
type codexEvent struct {
	Item *codexItem `json:"item"`
	// turn.failed carries {"error":{"message":...}}; error carries "message".
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type codexItem struct {
	ExitCode *int `json:"exit_code"`
	Changes  []struct {
		Path string `json:"path"`
		Kind string `json:"kind"`
	} `json:"changes"`
	ID               string `json:"id"`
	Type             string `json:"type"`
	Text             string `json:"text"`
	Command          string `json:"command"`
	AggregatedOutput string `json:"aggregated_output"`
	Status           string `json:"status"`
	Server           string `json:"server"`
	Tool             string `json:"tool"`
	Query            string `json:"query"`
}

// ParseLine converts a Codex event into messages. Only completed items are
// reported so each item appears once.
func (c *codex) ParseLine(line []byte) ([]domain.AgentMessage, bool) {
	var ev codexEvent
	if !decodeObject(line, &ev) || ev.Type == "" {
		return nil, false
	}

	switch ev.Type {
	case "thread.started":
		m := domain.NewAgentMessage(domain.MessageSystem, "thread started")
		m.Metadata = compact(map[string]any{"thread_id": ev.ThreadID})
		return []domain.AgentMessage{m}, true
	case "item.completed":
		if ev.Item == nil {
			return nil, true
		}
		return codexItemMessages(ev.Item), true
	case "turn.failed":
		msg := "turn failed"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageError, msg)}, true
	case "error":
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageError, firstNonEmpty(ev.Message, "error"))}, true
	}
	return nil, true
}

func codexItemMessages(item *codexItem) []domain.AgentMessage {
	switch item.Type {
	case "agent_message":
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageText, item.Text)}
	case "reasoning":
		return []domain.AgentMessage{domain.NewAgentMessage("reasoning", item.Text)}
	case "command_execution":
		m := domain.NewAgentMessage(domain.MessageToolCall, "Bash: "+item.Command)
		meta := map[string]any{"output": item.AggregatedOutput, "status": item.Status}
		if item.ExitCode != nil {
			meta["exit_code"] = *item.ExitCode
		}
		m.Metadata = compact(meta)
		return []domain.AgentMessage{m}
	case "file_change":
		msgs := make([]domain.AgentMessage, 0, len(item.Changes))
		for _, ch := range item.Changes {
			m := domain.NewAgentMessage(domain.MessageFileEdit, strings.TrimSpace(ch.Kind+" "+ch.Path))
			m.Metadata = compact(map[string]any{"path": ch.Path, "kind": ch.Kind})
			msgs = append(msgs, m)
		}
		return msgs
	case "mcp_tool_call":
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageToolCall, fmt.Sprintf("%s.%s", item.Server, item.Tool))}
	case "web_search":
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageToolCall, "WebSearch: "+item.Query)}
	case "error":
		return []domain.AgentMessage{domain.NewAgentMessage(domain.MessageError, item.Text)}
	}
	return nil
}
