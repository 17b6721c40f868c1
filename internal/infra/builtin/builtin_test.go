package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/git-delegate/internal/domain"
)

// =============================================================================
// Resolver Tests
// =============================================================================

func TestResolver_Resolve(t *testing.T) {
	cfg := domain.NewDefaultConfig()
	cfg.Profiles["local"] = domain.ProfileConfig{Command: "my-agent", Args: []string{"--dir", "{{.Dir}}"}}
	cfg.Profiles["empty"] = domain.ProfileConfig{Model: "x"}
	cfg.DisabledProfiles = []string{"codex"}
	r := NewResolver(cfg)

	tests := []struct {
		name     string
		profile  string
		wantName string
		wantErr  error
	}{
		{"default", "", domain.ProfileClaude, nil},
		{"claude", "claude", domain.ProfileClaude, nil},
		{"custom", "local", "local", nil},
		{"disabled", "codex", "", domain.ErrProfileDisabled},
		{"unknown", "nope", "", domain.ErrProfileNotFound},
		{"no command", "empty", "", domain.ErrProfileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(tt.profile)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestResolver_DefaultProfile(t *testing.T) {
	cfg := domain.NewDefaultConfig()
	cfg.DefaultProfile = domain.ProfileCodex
	r := NewResolver(cfg)

	p, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileCodex, p.Name())
}

func TestResolver_ExclusionReenables(t *testing.T) {
	cfg := domain.NewDefaultConfig()
	cfg.DisabledProfiles = []string{"*", "!codex"}
	r := NewResolver(cfg)

	_, err := r.Resolve("claude")
	assert.ErrorIs(t, err, domain.ErrProfileDisabled)
	_, err = r.Resolve("codex")
	assert.NoError(t, err)
}

func TestResolver_Names(t *testing.T) {
	cfg := domain.NewDefaultConfig()
	cfg.Profiles["zeta"] = domain.ProfileConfig{Command: "z"}
	cfg.Profiles["claude"] = domain.ProfileConfig{Model: "opus"}

	assert.Equal(t, []string{"claude", "codex", "zeta"}, NewResolver(cfg).Names())
}

func TestResolver_NilConfig(t *testing.T) {
	p, err := NewResolver(nil).Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileClaude, p.Name())
}

// =============================================================================
// Claude Tests
// =============================================================================

func TestClaude_Plan(t *testing.T) {
	p := newClaude(domain.ProfileConfig{Model: "sonnet", Args: []string{"--permission-mode", "acceptEdits"}})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "fix it", Dir: "/wt/t1"})
	require.NoError(t, err)

	assert.Equal(t, "claude", inv.Program)
	assert.Equal(t, "/wt/t1", inv.Dir)
	assert.Equal(t, []string{
		"-p", "--output-format", "stream-json", "--verbose", "--add-dir", "/wt/t1",
		"--model", "sonnet", "--permission-mode", "acceptEdits", "--", "fix it",
	}, inv.Args)
}

func TestClaude_Plan_DashPrompt(t *testing.T) {
	p := newClaude(domain.ProfileConfig{})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "- also fix the tests", Dir: "/wt"})
	require.NoError(t, err)

	n := len(inv.Args)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, []string{"--", "- also fix the tests"}, inv.Args[n-2:])
	assert.Equal(t, 1, countArg(inv.Args, "--"))
}

func TestClaude_Plan_Overrides(t *testing.T) {
	p := newClaude(domain.ProfileConfig{Command: "/opt/claude", Model: "sonnet"})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "x", Dir: "/d", Model: "opus"})
	require.NoError(t, err)

	assert.Equal(t, "/opt/claude", inv.Program)
	assert.Contains(t, inv.Args, "opus")
	assert.NotContains(t, inv.Args, "sonnet")
}

func TestClaude_ParseLine(t *testing.T) {
	p := newClaude(domain.ProfileConfig{})

	tests := []struct {
		name    string
		line    string
		want    []domain.AgentMessage
		wantOK  bool
		checkMD func(t *testing.T, msgs []domain.AgentMessage)
	}{
		{
			name:   "not json",
			line:   "Loading...",
			wantOK: false,
		},
		{
			name:   "json without type",
			line:   `{"foo":1}`,
			wantOK: false,
		},
		{
			name:   "system init",
			line:   `{"type":"system","subtype":"init","session_id":"s1","model":"opus"}`,
			want:   []domain.AgentMessage{{Sender: domain.SenderSystem, Type: domain.MessageSystem, Content: "session init (opus)"}},
			wantOK: true,
		},
		{
			name: "assistant text and tools",
			line: `{"type":"assistant","message":{"content":[` +
				`{"type":"text","text":"Looking"},` +
				`{"type":"tool_use","id":"u1","name":"Read","input":{"file_path":"main.go"}},` +
				`{"type":"tool_use","id":"u2","name":"Edit","input":{"file_path":"main.go"}},` +
				`{"type":"tool_use","id":"u3","name":"Bash","input":{"command":"go test"}}]}}`,
			want: []domain.AgentMessage{
				{Sender: domain.SenderAgent, Type: domain.MessageText, Content: "Looking"},
				{Sender: domain.SenderAgent, Type: domain.MessageFileRead, Content: "Read: main.go"},
				{Sender: domain.SenderAgent, Type: domain.MessageFileEdit, Content: "Edit: main.go"},
				{Sender: domain.SenderAgent, Type: domain.MessageToolCall, Content: "Bash: go test"},
			},
			wantOK: true,
		},
		{
			name: "tool result",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"u1","content":[{"type":"text","text":"ok"}]}]}}`,
			want: []domain.AgentMessage{
				{Sender: domain.SenderAgent, Type: domain.MessageToolResult, Content: "ok"},
			},
			wantOK: true,
		},
		{
			name: "tool error",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","is_error":true,"content":"denied"}]}}`,
			want: []domain.AgentMessage{
				{Sender: domain.SenderSystem, Type: domain.MessageError, Content: "denied"},
			},
			wantOK: true,
		},
		{
			name:   "user string content",
			line:   `{"type":"user","message":{"content":"hi"}}`,
			wantOK: true,
		},
		{
			name: "result success",
			line: `{"type":"result","subtype":"success","num_turns":3,"result":"done"}`,
			want: []domain.AgentMessage{
				{Sender: domain.SenderSystem, Type: domain.MessageSystem, Content: "finished after 3 turns"},
			},
			wantOK: true,
		},
		{
			name: "result error",
			line: `{"type":"result","subtype":"error_max_turns","is_error":true}`,
			want: []domain.AgentMessage{
				{Sender: domain.SenderSystem, Type: domain.MessageError, Content: "error_max_turns"},
			},
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, ok := p.ParseLine([]byte(tt.line))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, stripMetadata(msgs))
		})
	}
}

func TestClaude_ParseLine_ToolMetadata(t *testing.T) {
	p := newClaude(domain.ProfileConfig{})

	msgs, ok := p.ParseLine([]byte(`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"u1","name":"Grep","input":{"pattern":"TODO"}}]}}`))
	require.True(t, ok)
	require.Len(t, msgs, 1)

	assert.Equal(t, "Grep: TODO", msgs[0].Content)
	assert.Equal(t, "Grep", msgs[0].Metadata["tool"])
	assert.Equal(t, "u1", msgs[0].Metadata["tool_use_id"])
	assert.Equal(t, map[string]any{"pattern": "TODO"}, msgs[0].Metadata["input"])
}

// =============================================================================
// Codex Tests
// =============================================================================

func TestCodex_Plan(t *testing.T) {
	p := newCodex(domain.ProfileConfig{Model: "gpt-5"})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "fix it", Dir: "/wt/t1"})
	require.NoError(t, err)

	assert.Equal(t, "codex", inv.Program)
	assert.Equal(t, []string{"exec", "--json", "--cd", "/wt/t1", "-m", "gpt-5", "--", "fix it"}, inv.Args)
}

func TestCodex_Plan_DashPrompt(t *testing.T) {
	p := newCodex(domain.ProfileConfig{Args: []string{"--full-auto"}})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "- also fix the tests", Dir: "/wt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"exec", "--json", "--cd", "/wt", "--full-auto", "--", "- also fix the tests"}, inv.Args)
}

func countArg(args []string, want string) int {
	n := 0
	for _, a := range args {
		if a == want {
			n++
		}
	}
	return n
}

func TestCodex_ParseLine(t *testing.T) {
	p := newCodex(domain.ProfileConfig{})

	tests := []struct {
		name   string
		line   string
		want   []domain.AgentMessage
		wantOK bool
	}{
		{"plain text", "warning: something", nil, false},
		{"thread", `{"type":"thread.started","thread_id":"th1"}`,
			[]domain.AgentMessage{{Sender: domain.SenderSystem, Type: domain.MessageSystem, Content: "thread started"}}, true},
		{"turn started", `{"type":"turn.started"}`, nil, true},
		{"item started ignored", `{"type":"item.started","item":{"type":"command_execution","command":"ls"}}`, nil, true},
		{"agent message", `{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"Done."}}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: domain.MessageText, Content: "Done."}}, true},
		{"reasoning", `{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: "reasoning", Content: "thinking"}}, true},
		{"command", `{"type":"item.completed","item":{"type":"command_execution","command":"go test","exit_code":0,"status":"completed"}}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: domain.MessageToolCall, Content: "Bash: go test"}}, true},
		{"file change", `{"type":"item.completed","item":{"type":"file_change","changes":[{"path":"a.go","kind":"update"},{"path":"b.go","kind":"add"}]}}`,
			[]domain.AgentMessage{
				{Sender: domain.SenderAgent, Type: domain.MessageFileEdit, Content: "update a.go"},
				{Sender: domain.SenderAgent, Type: domain.MessageFileEdit, Content: "add b.go"},
			}, true},
		{"turn failed", `{"type":"turn.failed","error":{"message":"quota"}}`,
			[]domain.AgentMessage{{Sender: domain.SenderSystem, Type: domain.MessageError, Content: "quota"}}, true},
		{"error", `{"type":"error","message":"reconnecting"}`,
			[]domain.AgentMessage{{Sender: domain.SenderSystem, Type: domain.MessageError, Content: "reconnecting"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, ok := p.ParseLine([]byte(tt.line))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, stripMetadata(msgs))
		})
	}
}

func TestCodex_ParseLine_CommandMetadata(t *testing.T) {
	p := newCodex(domain.ProfileConfig{})

	msgs, ok := p.ParseLine([]byte(`{"type":"item.completed","item":{"type":"command_execution","command":"false","exit_code":1,"aggregated_output":"boom"}}`))
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Metadata["exit_code"])
	assert.Equal(t, "boom", msgs[0].Metadata["output"])
}

// =============================================================================
// Command Profile Tests
// =============================================================================

func TestCommand_Plan(t *testing.T) {
	p := newCommand("local", domain.ProfileConfig{
		Command: "agent",
		Model:   "small",
		Args:    []string{"--cwd={{.Dir}}", "--model", "{{.Model}}", "--prompt", "{{.Prompt}}"},
	})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "hi there", Dir: "/wt"})
	require.NoError(t, err)

	assert.Equal(t, "agent", inv.Program)
	assert.Equal(t, "/wt", inv.Dir)
	assert.Equal(t, []string{"--cwd=/wt", "--model", "small", "--prompt", "hi there"}, inv.Args)
}

func TestCommand_Plan_AppendsPrompt(t *testing.T) {
	p := newCommand("local", domain.ProfileConfig{Command: "agent", Args: []string{"--json"}})

	inv, err := p.Plan(domain.InvocationRequest{Prompt: "do it", Dir: "/wt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--json", "do it"}, inv.Args)
}

func TestCommand_Plan_Errors(t *testing.T) {
	_, err := newCommand("x", domain.ProfileConfig{}).Plan(domain.InvocationRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyCommand)

	_, err = newCommand("x", domain.ProfileConfig{Command: "a", Args: []string{"{{.Prompt"}}).Plan(domain.InvocationRequest{})
	assert.Error(t, err)

	_, err = newCommand("x", domain.ProfileConfig{Command: "a", Args: []string{"{{.Unknown}}"}}).Plan(domain.InvocationRequest{})
	assert.Error(t, err)
}

func TestCommand_ParseLine(t *testing.T) {
	p := newCommand("local", domain.ProfileConfig{Command: "agent"})

	tests := []struct {
		name   string
		line   string
		want   []domain.AgentMessage
		wantOK bool
	}{
		{"plain", "hello", nil, false},
		{"array", `[1,2]`, nil, false},
		{"unrelated object", `{"level":"info"}`, nil, false},
		{"content only", `{"content":"hi"}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: domain.MessageText, Content: "hi"}}, true},
		{"typed", `{"type":"system","content":"boot"}`,
			[]domain.AgentMessage{{Sender: domain.SenderSystem, Type: domain.MessageSystem, Content: "boot"}}, true},
		{"text alias", `{"type":"edit","text":"main.go"}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: domain.MessageFileEdit, Content: "main.go"}}, true},
		{"custom type kept", `{"type":"plan","message":"step 1"}`,
			[]domain.AgentMessage{{Sender: domain.SenderAgent, Type: "plan", Content: "step 1"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, ok := p.ParseLine([]byte(tt.line))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, msgs)
		})
	}
}

func stripMetadata(msgs []domain.AgentMessage) []domain.AgentMessage {
	for i := range msgs {
		msgs[i].Metadata = nil
	}
	return msgs
}
