// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package supervise

import (
	"strings"
	"time"
)

// ExitClass categorizes an observed process exit. The coordinator only
// ever branches on this; the raw substring matching stays in this file.
type ExitClass int

const (
	// ExitKilled: we asked for it. Expected during restarts and shutdown.
	ExitKilled ExitClass = iota
	// ExitPortConflict: the server could not bind its port. Terminal for
	// the cycle; retrying would repeat the same failure.
	ExitPortConflict
	// ExitFastCrash: unexpected exit before the stability threshold.
	// Retryable up to the configured bound.
	ExitFastCrash
	// ExitStable: the process ended after running stably, or exited zero.
	// Treated as a normal lifecycle end, never retried automatically.
	ExitStable
)

func (c ExitClass) String() string {
	switch c {
	case ExitKilled:
		return "killed"
	case ExitPortConflict:
		return "port-conflict"
	case ExitFastCrash:
		return "fast-crash"
	default:
		return "stable"
	}
}

// portConflictSignatures are the OS and runtime strings that mean the
// listening port was already bound.
var portConflictSignatures = []string{
	"address already in use",
	"bind: address already in use",
	"eaddrinuse",
	"only one usage of each socket address",
}

// ClassifyExit maps an exit observation onto an ExitClass. killed reflects
// the killInProgress guard at the moment of exit; output is the captured
// tail of the process output.
func ClassifyExit(code int, killed bool, uptime, stability time.Duration, output []string) ExitClass {
	if killed {
		return ExitKilled
	}
	for _, line := range output {
		lower := strings.ToLower(line)
		for _, sig := range portConflictSignatures {
			if strings.Contains(lower, sig) {
				return ExitPortConflict
			}
		}
	}
	if code != 0 && uptime < stability {
		return ExitFastCrash
	}
	return ExitStable
}
