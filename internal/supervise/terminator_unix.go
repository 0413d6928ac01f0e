// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

//go:build !windows

package supervise

import (
	"os/exec"
	"syscall"
)

// newTerminator returns the POSIX process-group terminator.
func newTerminator() terminator {
	return &groupTerminator{}
}

// groupTerminator puts the child in its own process group so a single
// signal reaches the server and everything it forked.
type groupTerminator struct{}

func (t *groupTerminator) setup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (t *groupTerminator) terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

func (t *groupTerminator) forceKill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
