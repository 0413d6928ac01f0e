// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervise

import (
	"fmt"
	"net"
	"time"
)

// PortBound reports whether something is currently listening on the port.
// Used only to sharpen the port-conflict guidance, never for gating.
func PortBound(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 250*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// PortConflictGuidance renders the remedy for a port-conflict exit. The
// loop does not retry this automatically: against an occupied port a retry
// repeats the same failure.
func PortConflictGuidance(port int) string {
	msg := fmt.Sprintf("port %d is already in use.", port)
	if PortBound(port) {
		msg += fmt.Sprintf(" Another process is listening on it right now;"+
			" stop it (e.g. `lsof -i :%d`) or change server.port in devloop.yaml,"+
			" then save a file to try again.", port)
	} else {
		msg += " It appears free now; save a file to retry," +
			" or change server.port in devloop.yaml."
	}
	return msg
}
