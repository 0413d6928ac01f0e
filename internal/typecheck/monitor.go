// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package typecheck runs the static type checker in watch mode and derives
// a tri-state health signal from its streamed output.
package typecheck

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Health summarizes the last known result of the static checker.
type Health int32

const (
	// HealthUnknown: no check has completed yet, or the checker could not
	// be started at all. Gates exactly like HealthUnhealthy.
	HealthUnknown Health = iota
	// HealthHealthy: the last full check reported zero errors.
	HealthHealthy
	// HealthUnhealthy: the last full check reported errors, or a check is
	// in progress and has not reported yet.
	HealthUnhealthy
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Event is emitted on every health transition.
type Event struct {
	Health Health
	// Errors is the reported error count when Health is HealthUnhealthy
	// because of a completed check; zero otherwise.
	Errors int
}

// Monitor supervises the checker process and owns the health state.
// All mutation happens in the monitor goroutine; Health() may be read
// from anywhere.
type Monitor struct {
	root    string
	command []string
	// Passthrough receives inert checker output lines for display.
	Passthrough func(line string)

	restartDelay time.Duration

	mu      sync.Mutex
	health  Health
	events  chan Event
	done    chan struct{}
	cmd     *exec.Cmd
	started bool
	closed  bool
}

// NewMonitor creates a Monitor for the given project root. command is the
// checker executable and its watch-mode arguments.
func NewMonitor(root string, command []string) *Monitor {
	return &Monitor{
		root:         root,
		command:      command,
		restartDelay: 1 * time.Second,
		health:       HealthUnknown,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
}

// Health returns the current health state.
func (m *Monitor) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// Events starts the monitor on first call and returns the transition
// channel. The channel closes when the monitor stops.
func (m *Monitor) Events() <-chan Event {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return m.events
	}
	m.started = true
	m.mu.Unlock()

	go m.run()
	return m.events
}

// run launches the checker and restarts it on unexpected exit. If the
// checker binary cannot be found, health stays Unknown for the whole
// session and the monitor degrades to a closed gate, warning once.
func (m *Monitor) run() {
	defer close(m.events)

	for {
		err := m.runOnce()
		if m.isDone() {
			return
		}
		if err != nil && errors.Is(err, exec.ErrNotFound) {
			slog.Warn("type checker not found; builds stay gated until it is installed",
				"command", m.command[0])
			<-m.done
			return
		}
		if err != nil {
			slog.Warn("type checker exited, restarting", "error", err)
		}

		select {
		case <-m.done:
			return
		case <-time.After(m.restartDelay):
		}
	}
}

// runOnce starts the checker process and consumes its output until exit.
func (m *Monitor) runOnce() error {
	cmd := exec.Command(m.command[0], m.command[1:]...)
	cmd.Dir = m.root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open checker stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start type checker: %w", err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.mu.Unlock()

	m.consume(stdout)

	waitErr := cmd.Wait()

	m.mu.Lock()
	m.cmd = nil
	m.mu.Unlock()

	return waitErr
}

// consume classifies checker output line by line and applies transitions.
// Split out so it can be driven from a plain reader in tests.
func (m *Monitor) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		class, count := Classify(line)

		switch class {
		case LineCheckStarting:
			// Pessimistic: the gate closes before the new result is known.
			m.transition(HealthUnhealthy, 0)
		case LineClean:
			m.transition(HealthHealthy, 0)
		case LineErrors:
			m.transition(HealthUnhealthy, count)
			if m.Passthrough != nil {
				m.Passthrough(line)
			}
		default:
			if m.Passthrough != nil && line != "" {
				m.Passthrough(line)
			}
		}
	}
}

// transition updates health and emits an event when the state changed.
func (m *Monitor) transition(to Health, errCount int) {
	m.mu.Lock()
	changed := m.health != to
	m.health = to
	m.mu.Unlock()

	if !changed {
		return
	}

	select {
	case m.events <- Event{Health: to, Errors: errCount}:
	case <-m.done:
	}
}

func (m *Monitor) isDone() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Stop terminates the checker process and ends the monitor. Safe to call
// when the monitor never started or already stopped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cmd := m.cmd
	m.mu.Unlock()

	close(m.done)
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
