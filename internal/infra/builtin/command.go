package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/runoshun/git-delegate/internal/domain"
)

// command is a user-defined profile. Each argument is a text/template over
// {{.Prompt}}, {{.Dir}} and {{.Model}}; when no argument mentions .Prompt the
// prompt is appended as the last argument.
type command struct {
	name    string
	program string
	model   string
	args    []string
}

func newCommand(name string, cfg domain.ProfileConfig) *command {
	return &command{name: name, program: cfg.Command, model: cfg.Model, args: cfg.Args}
}

func (c *command) Name() string { return c.name }

// templateData is the data available to custom profile arguments.
type templateData struct {
	Prompt string
	Dir    string
	Model  string
}

func (c *command) Plan(req domain.InvocationRequest) (*domain.Invocation, error) {
	if c.program == "" {
		return nil, fmt.Errorf("profile %s: %w", c.name, domain.ErrEmptyCommand)
	}
	data := templateData{Prompt: req.Prompt, Dir: req.Dir, Model: firstNonEmpty(req.Model, c.model)}

	args := make([]string, 0, len(c.args)+1)
	promptUsed := false
	for i, raw := range c.args {
		tmpl, err := template.New(fmt.Sprintf("%s-arg%d", c.name, i)).Option("missingkey=error").Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse argument %q of profile %s: %w", raw, c.name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render argument %q of profile %s: %w", raw, c.name, err)
		}
		if strings.Contains(raw, ".Prompt") {
			promptUsed = true
		}
		args = append(args, buf.String())
	}
	if !promptUsed {
		args = append(args, req.Prompt)
	}
	return &domain.Invocation{Program: c.program, Dir: req.Dir, Args: args}, nil
}

// genericRecord is the line format of custom profiles:
// {"type": "...", "content": "...", "metadata": {...}}. "text" and "message"
// are accepted in place of "content".
type genericRecord struct {
	Metadata map[string]any `json:"metadata"`
	Type     *string        `json:"type"`
	Content  *string        `json:"content"`
	Text     *string        `json:"text"`
	Message  *string        `json:"message"`
}

func (c *command) ParseLine(line []byte) ([]domain.AgentMessage, bool) {
	var rec genericRecord
	if !decodeObject(line, &rec) {
		return nil, false
	}
	content := rec.Content
	if content == nil {
		content = rec.Text
	}
	if content == nil {
		content = rec.Message
	}
	if content == nil && rec.Type == nil {
		return nil, false
	}

	var typ string
	if rec.Type != nil {
		typ = *rec.Type
	}
	var text string
	if content != nil {
		text = *content
	}
	m := domain.NewAgentMessage(domain.ParseMessageType(typ), text)
	m.Metadata = rec.Metadata
	return []domain.AgentMessage{m}, true
}

// decodeObject decodes a single JSON object line. Anything else reports false.
func decodeObject(line []byte, v any) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return false
	}
	return json.Unmarshal(line, v) == nil
}

// compact drops empty values so metadata stays small.
func compact(m map[string]any) map[string]any {
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if x == "" {
				delete(m, k)
			}
		case map[string]any:
			if len(x) == 0 {
				delete(m, k)
			}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
