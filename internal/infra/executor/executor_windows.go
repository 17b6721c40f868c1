//go:build windows

package executor

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func stopGroup(proc *os.Process) error {
	return proc.Kill()
}

func forceKillGroup(proc *os.Process) error {
	return proc.Kill()
}
