package builtin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// claude drives the Anthropic CLI in print mode with stream-json output.
type claude struct {
	command string
	model   string
	args    []string
}

func newClaude(cfg domain.ProfileConfig) *claude {
	c := &claude{command: "claude", model: cfg.Model, args: cfg.Args}
	if cfg.Command != "" {
		c.command = cfg.Command
	}
	return c
}

func (c *claude) Name() string { return domain.ProfileClaude }

// Plan builds: claude -p --output-format stream-json --verbose --add-dir <dir> [--model m] [args...] -- <prompt>
// The prompt follows "--" so a leading dash is not read as a flag.
func (c *claude) Plan(req domain.InvocationRequest) (*domain.Invocation, error) {
	args := []string{"-p", "--output-format", "stream-json", "--verbose", "--add-dir", req.Dir}
	if model := firstNonEmpty(req.Model, c.model); model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, c.args...)
	args = append(args, "--", req.Prompt)
	return &domain.Invocation{Program: c.command, Dir: req.Dir, Args: args}, nil
}

// claudeRecord is one line of stream-json output.
type claudeRecord struct {
	Message struct {
		Content json.RawMessage `json:"content"` // String or list of blocks
	} `json:"message"`
	Type         string   `json:"type"`
	Subtype      string   `json:"subtype"`
	SessionID    string   `json:"session_id"`
	Model        string   `json:"model"`
	Result       string   `json:"result"`
	Errors       []string `json:"errors"`
	TotalCostUSD float64  `json:"total_cost_usd"`
	DurationMs   int      `json:"duration_ms"`
	NumTurns     int      `json:"num_turns"`
	IsError      bool     `json:"is_error"`
}

type claudeBlock struct {
	Input     map[string]any  `json:"input"`
	Content   json.RawMessage `json:"content"`
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Name      string          `json:"name"`
	ID        string          `json:"id"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
}

// ParseLine converts a stream-json record into messages.
func (c *claude) ParseLine(line []byte) ([]domain.AgentMessage, bool) {
	var rec claudeRecord
	if !decodeObject(line, &rec) || rec.Type == "" {
		return nil, false
	}

	var msgs []domain.AgentMessage
	switch rec.Type {
	case "system":
		content := "session " + rec.Subtype
		if rec.Model != "" {
			content += " (" + rec.Model + ")"
		}
		m := domain.NewAgentMessage(domain.MessageSystem, content)
		m.Metadata = compact(map[string]any{"session_id": rec.SessionID, "model": rec.Model})
		msgs = append(msgs, m)

	case "assistant":
		for _, b := range contentBlocks(rec.Message.Content) {
			switch b.Type {
			case "text":
				if strings.TrimSpace(b.Text) != "" {
					msgs = append(msgs, domain.NewAgentMessage(domain.MessageText, b.Text))
				}
			case "tool_use":
				m := domain.NewAgentMessage(claudeToolType(b.Name), describeTool(b.Name, b.Input))
				m.Metadata = compact(map[string]any{"tool": b.Name, "tool_use_id": b.ID, "input": b.Input})
				msgs = append(msgs, m)
			}
		}

	case "user":
		for _, b := range contentBlocks(rec.Message.Content) {
			if b.Type != "tool_result" {
				continue
			}
			t := domain.MessageToolResult
			if b.IsError {
				t = domain.MessageError
			}
			m := domain.NewAgentMessage(t, toolResultText(b.Content))
			m.Metadata = compact(map[string]any{"tool_use_id": b.ToolUseID})
			msgs = append(msgs, m)
		}

	case "result":
		if rec.IsError || (rec.Subtype != "" && rec.Subtype != "success") {
			content := firstNonEmpty(rec.Result, strings.Join(rec.Errors, "; "), rec.Subtype)
			msgs = append(msgs, domain.NewAgentMessage(domain.MessageError, content))
			break
		}
		m := domain.NewAgentMessage(domain.MessageSystem,
			fmt.Sprintf("finished after %d turns", rec.NumTurns))
		m.Metadata = compact(map[string]any{
			"duration_ms":    rec.DurationMs,
			"total_cost_usd": rec.TotalCostUSD,
			"session_id":     rec.SessionID,
		})
		msgs = append(msgs, m)
	}
	return msgs, true
}

// contentBlocks decodes message content. Plain string content has no blocks.
func contentBlocks(raw json.RawMessage) []claudeBlock {
	var blocks []claudeBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// claudeToolType classifies a Claude tool by what it does to files.
func claudeToolType(name string) domain.MessageType {
	switch name {
	case "Read", "NotebookRead":
		return domain.MessageFileRead
	case "Edit", "MultiEdit", "Write", "NotebookEdit":
		return domain.MessageFileEdit
	default:
		return domain.MessageToolCall
	}
}

// describeTool renders a one-line description of a tool invocation.
func describeTool(name string, input map[string]any) string {
	for _, key := range []string{"file_path", "notebook_path", "path", "command", "pattern", "url", "query", "description"} {
		if v, ok := input[key].(string); ok && v != "" {
			return name + ": " + v
		}
	}
	return name
}

// toolResultText flattens tool_result content, which is either a string or
// a list of text blocks.
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}
