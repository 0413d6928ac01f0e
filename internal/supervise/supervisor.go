// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package supervise owns the lifecycle of the external server process:
// start, readiness, crash classification, and idempotent kill.
package supervise

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// tailLines is how much process output is retained for exit classification.
const tailLines = 50

// EventKind distinguishes supervisor notifications.
type EventKind int

const (
	// EventReady: the ready marker appeared in the process output.
	EventReady EventKind = iota
	// EventExit: the OS process reported exit.
	EventExit
)

// Event is a supervisor notification, tagged with the build generation the
// process belongs to so stale events can be discarded upstream.
type Event struct {
	Kind       EventKind
	Generation uint64
	RetryCount int
	Exit       *ExitInfo
}

// ExitInfo describes an observed process exit.
type ExitInfo struct {
	Code       int
	Uptime     time.Duration
	Class      ExitClass
	OutputTail []string
}

// Config holds the fixed parameters for one supervised server.
type Config struct {
	// Command is the server executable and arguments.
	Command []string
	// Dir is the working directory the process is bound to.
	Dir string
	// Port is what the server binds; exported to it and used in guidance.
	Port int
	// ReadyMarker is the literal stdout substring signaling readiness.
	ReadyMarker string
	// Env entries appended to the inherited environment.
	Env []string
	// StabilityThreshold separates fast crashes from stable runs.
	StabilityThreshold time.Duration
	// KillTimeout is the failsafe when an exit event never arrives.
	KillTimeout time.Duration
}

// Handle is the ownership wrapper around one running server process. It is
// created on every start and nulled the instant the process reports exit;
// nothing outside this package touches it.
type Handle struct {
	PID        int
	StartedAt  time.Time
	RetryCount int

	generation     uint64
	killInProgress bool
	cmd            *exec.Cmd
	exited         chan struct{}
}

// Supervisor manages at most one Handle at a time. Start while a handle is
// active is a programming defect and returns an error rather than spawning
// a second instance against the same port.
type Supervisor struct {
	cfg  Config
	term terminator
	// Out receives the process's combined output. Buffered until the ready
	// marker, streamed live afterwards.
	Out io.Writer

	mu     sync.Mutex
	handle *Handle
	events chan Event
}

// New creates a Supervisor with the platform terminator.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		term:   newTerminator(),
		Out:    os.Stdout,
		events: make(chan Event, 16),
	}
}

// Events returns the notification channel.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Active reports whether a process is currently supervised.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Start spawns the server process for the given build generation. The
// caller must have awaited Kill first; the previous instance has to release
// the port before a new one may bind it.
func (s *Supervisor) Start(ctx context.Context, generation uint64, retryCount int) error {
	s.mu.Lock()
	if s.handle != nil {
		s.mu.Unlock()
		return fmt.Errorf("supervisor misuse: start requested while pid %d is active", s.handle.PID)
	}
	s.mu.Unlock()

	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(),
		"DEVLOOP_ENV=development",
		fmt.Sprintf("DEVLOOP_PORT=%d", s.cfg.Port),
	)
	cmd.Env = append(cmd.Env, s.cfg.Env...)
	s.term.setup(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("failed to start server process: %w", err)
	}

	handle := &Handle{
		PID:        cmd.Process.Pid,
		StartedAt:  time.Now(),
		RetryCount: retryCount,
		generation: generation,
		cmd:        cmd,
		exited:     make(chan struct{}),
	}

	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	scanDone := make(chan []string, 1)
	go s.scanOutput(pr, handle, scanDone)
	go s.awaitExit(cmd, pw, handle, scanDone)

	return nil
}

// scanOutput reads the process's combined output. Until the ready marker
// appears, lines are held back and then replayed as one block, keeping the
// ready transition visually atomic; afterwards output streams through.
func (s *Supervisor) scanOutput(r io.Reader, h *Handle, done chan<- []string) {
	var (
		buffered []string
		tail     []string
		ready    bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[1:]
		}

		if ready {
			fmt.Fprintln(s.Out, line)
			continue
		}

		buffered = append(buffered, line)
		if s.cfg.ReadyMarker != "" && containsMarker(line, s.cfg.ReadyMarker) {
			ready = true
			for _, l := range buffered {
				fmt.Fprintln(s.Out, l)
			}
			buffered = nil
			s.events <- Event{
				Kind:       EventReady,
				Generation: h.generation,
				RetryCount: h.RetryCount,
			}
		}
	}

	done <- tail
}

// awaitExit waits for the OS process, classifies the exit, and emits the
// exit event. The handle is nulled before the event goes out so a Kill
// waiter can never observe a dead handle as active.
func (s *Supervisor) awaitExit(cmd *exec.Cmd, pw *io.PipeWriter, h *Handle, scanDone <-chan []string) {
	// Wait's error is redundant with the exit code; classification only
	// needs the code, the uptime, and the captured output.
	_ = cmd.Wait()
	pw.Close()
	tail := <-scanDone

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	uptime := time.Since(h.StartedAt)

	s.mu.Lock()
	killed := h.killInProgress
	s.handle = nil
	s.mu.Unlock()
	close(h.exited)

	s.events <- Event{
		Kind:       EventExit,
		Generation: h.generation,
		RetryCount: h.RetryCount,
		Exit: &ExitInfo{
			Code:       code,
			Uptime:     uptime,
			Class:      ClassifyExit(code, killed, uptime, s.cfg.StabilityThreshold, tail),
			OutputTail: tail,
		},
	}
}

// Kill terminates the supervised process and returns once its exit event
// has fired, or after the failsafe timeout if it never does. A no-op when
// nothing is running; safe to call concurrently and repeatedly.
func (s *Supervisor) Kill(ctx context.Context) error {
	s.mu.Lock()
	h := s.handle
	if h == nil {
		s.mu.Unlock()
		return nil
	}
	alreadyKilling := h.killInProgress
	h.killInProgress = true
	s.mu.Unlock()

	if !alreadyKilling {
		// Termination failing usually means the process is already gone;
		// the failsafe below covers the rest.
		_ = s.term.terminate(h.cmd)
	}

	select {
	case <-h.exited:
		return nil
	case <-time.After(s.cfg.KillTimeout):
		_ = s.term.forceKill(h.cmd)
		return nil
	case <-ctx.Done():
		_ = s.term.forceKill(h.cmd)
		return ctx.Err()
	}
}

func containsMarker(line, marker string) bool {
	return marker != "" && strings.Contains(line, marker)
}
