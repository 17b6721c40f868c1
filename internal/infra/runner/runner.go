// Package runner provides script execution functionality.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// maxOutputTail bounds how much script output is carried in an error.
const maxOutputTail = 4096

// Client implements domain.ScriptRunner interface.
type Client struct {
	shell string
}

// NewClient creates a new script runner client.
func NewClient() *Client {
	return &Client{shell: "sh"}
}

// Ensure Client implements domain.ScriptRunner interface.
var _ domain.ScriptRunner = (*Client)(nil)

// Run executes a script in a directory. The script is killed when ctx is done.
func (c *Client) Run(ctx context.Context, dir, script string, env ...string) error {
	cmd := exec.CommandContext(ctx, c.shell, "-c", script)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("execute script: %w: %s", err, tail(out))
	}

	return nil
}

// tail returns the trimmed end of out, at most maxOutputTail bytes.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutputTail {
		s = "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
