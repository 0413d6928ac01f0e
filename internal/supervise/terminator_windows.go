// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

//go:build windows

package supervise

import (
	"fmt"
	"os/exec"
)

// newTerminator returns the Windows tree-kill terminator. Windows has no
// POSIX process groups, so termination goes through taskkill /T.
func newTerminator() terminator {
	return &treeKillTerminator{}
}

type treeKillTerminator struct{}

func (t *treeKillTerminator) setup(cmd *exec.Cmd) {}

func (t *treeKillTerminator) terminate(cmd *exec.Cmd) error {
	return t.forceKill(cmd)
}

func (t *treeKillTerminator) forceKill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", fmt.Sprintf("%d", cmd.Process.Pid))
	return kill.Run()
}
