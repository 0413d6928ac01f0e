// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package devloop

import "github.com/google/uuid"

// Session is the top-level mutable state for one `devloop dev` invocation.
// It lives on the coordinator goroutine; nothing else mutates it.
type Session struct {
	// ID tags log lines from this invocation.
	ID string
	// Root is the absolute project path.
	Root string
	// UsesStaticTyping is fixed at session start.
	UsesStaticTyping bool
	// HasNativeActions only affects display text.
	HasNativeActions bool
	// Generation increments each time a rebuild is initiated. Async
	// completions carrying an older generation are discarded.
	Generation uint64
}

// NewSession creates a Session for the given project root.
func NewSession(root string, usesStaticTyping, hasNativeActions bool) *Session {
	return &Session{
		ID:               uuid.NewString(),
		Root:             root,
		UsesStaticTyping: usesStaticTyping,
		HasNativeActions: hasNativeActions,
	}
}

// State is the coordinator's position in the dev-loop state machine.
type State int

const (
	// StateIdle: waiting for the next settled change.
	StateIdle State = iota
	// StateBuilding: a build is in flight for the current generation.
	StateBuilding
	// StateStarting: build succeeded, server spawned, ready marker pending.
	StateStarting
	// StateRunning: server reported ready; output streams live.
	StateRunning
	// StateRestarting: transient, killing the previous server before a rebuild.
	StateRestarting
	// StateBlocked: type health is not clean; builds are gated off.
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateBlocked:
		return "blocked"
	default:
		return "invalid"
	}
}
