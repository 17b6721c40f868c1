// Package executor provides command execution functionality.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/runoshun/git-delegate/internal/domain"
)

// killGrace is how long a process group gets to exit after SIGTERM before SIGKILL.
var killGrace = 5 * time.Second

// Client runs commands and launches agent processes.
type Client struct{}

// NewClient creates a new command executor client.
func NewClient() *Client {
	return &Client{}
}

// Ensure Client implements the domain execution ports.
var (
	_ domain.CommandRunner   = (*Client)(nil)
	_ domain.ProcessLauncher = (*Client)(nil)
)

// Run executes a command to completion and returns its stdout and stderr.
func (c *Client) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	// #nosec G204 - name and args come from trusted adapter code
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Launch starts the invocation with stdout and stderr piped.
// The child leads its own process group. When ctx is done the whole group
// receives SIGTERM and, after a grace period, SIGKILL.
func (c *Client) Launch(ctx context.Context, inv *domain.Invocation) (domain.RunningProcess, error) {
	if inv == nil || inv.Program == "" {
		return nil, domain.ErrEmptyCommand
	}

	// #nosec G204 - invocation comes from trusted profile configuration
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	setProcessGroup(cmd)
	p := &Process{cmd: cmd}
	cmd.Cancel = p.terminate
	cmd.WaitDelay = killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	p.stdout, p.stderr = stdout, stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", inv.Program, err)
	}
	return p, nil
}

// Process is a running child started by Launch.
type Process struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
	once   sync.Once // Arms the SIGKILL escalation
}

// Stdout returns the child's standard output stream.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the child's standard error stream.
func (p *Process) Stderr() io.Reader { return p.stderr }

// PID returns the OS process ID.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Wait blocks until the child exits.
func (p *Process) Wait() error {
	return p.cmd.Wait()
}

// Kill terminates the child's process group: SIGTERM now, SIGKILL after
// killGrace. A group that already exited is not an error.
// On Windows only the child itself is killed.
func (p *Process) Kill() error {
	if err := p.terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal process %d: %w", p.cmd.Process.Pid, err)
	}
	return nil
}

func (p *Process) terminate() error {
	proc := p.cmd.Process
	p.once.Do(func() {
		time.AfterFunc(killGrace, func() {
			_ = forceKillGroup(proc)
		})
	})
	return stopGroup(proc)
}

// ExitCode extracts the exit code from a Wait error, or -1 if unavailable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
