// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervise

import "os/exec"

// terminator isolates platform-specific process termination behind one
// capability, selected once at startup. Call sites never branch on GOOS.
type terminator interface {
	// setup configures the command before Start (process group on POSIX).
	setup(cmd *exec.Cmd)
	// terminate requests a graceful stop of the process tree.
	terminate(cmd *exec.Cmd) error
	// forceKill ends the process tree unconditionally.
	forceKill(cmd *exec.Cmd) error
}
