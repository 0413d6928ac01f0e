// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package devloop ties the watcher, the type health monitor, the build
// pipeline, and the process supervisor into one serialized control loop.
// Every mutation of the session, the generation counter, and the machine
// state happens on the Run goroutine; the event sources stay concurrent.
package devloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"devloop/internal/build"
	"devloop/internal/output"
	"devloop/internal/supervise"
	"devloop/internal/typecheck"
	"devloop/internal/watch"
)

// Builder is the build pipeline boundary consumed by the coordinator.
type Builder interface {
	Build(ctx context.Context, root string) (*build.Artifact, error)
}

// ProcessManager is the supervisor boundary consumed by the coordinator.
type ProcessManager interface {
	Start(ctx context.Context, generation uint64, retryCount int) error
	Kill(ctx context.Context) error
	Events() <-chan supervise.Event
}

// HealthSource is the type health boundary. Nil when the project does not
// use static typing.
type HealthSource interface {
	Health() typecheck.Health
	Events() <-chan typecheck.Event
}

// buildResult carries an async build completion back into the loop,
// tagged with the generation that requested it.
type buildResult struct {
	generation uint64
	artifact   *build.Artifact
	err        error
}

// pendingRetry is a scheduled restart after a fast crash.
type pendingRetry struct {
	generation uint64
	retryCount int
}

// Coordinator is the dev-loop state machine.
type Coordinator struct {
	session *Session
	builder Builder
	proc    ProcessManager
	health  HealthSource
	changes <-chan watch.Change
	retry   supervise.RetryPolicy

	// Port and AppName feed display text only.
	Port    int
	AppName string

	state      State
	pending    bool // change arrived mid-build; exactly one follow-up rebuild
	builds     chan buildResult
	retryTimer *time.Timer
	retryFire  <-chan time.Time
	nextRetry  pendingRetry
	log        *slog.Logger
}

// New creates a Coordinator. health may be nil for untyped projects.
func New(
	session *Session,
	builder Builder,
	proc ProcessManager,
	health HealthSource,
	changes <-chan watch.Change,
	retry supervise.RetryPolicy,
) *Coordinator {
	return &Coordinator{
		session: session,
		builder: builder,
		proc:    proc,
		health:  health,
		changes: changes,
		retry:   retry,
		state:   StateBuilding,
		builds:  make(chan buildResult, 1),
		log:     slog.With("session", session.ID),
	}
}

// State returns the current machine state. Meaningful only from the Run
// goroutine or after Run has returned; exposed for tests.
func (c *Coordinator) State() State {
	return c.state
}

// Run drives the loop until ctx is canceled. On exit the supervised
// process has been killed. Never returns an error other than ctx's.
func (c *Coordinator) Run(ctx context.Context) error {
	var healthEvents <-chan typecheck.Event
	if c.health != nil {
		healthEvents = c.health.Events()
	}
	procEvents := c.proc.Events()

	// Startup is an implicit first change.
	c.requestCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()

		case change, ok := <-c.changes:
			if !ok {
				c.shutdown()
				// During shutdown the watcher closes concurrently with
				// cancellation; that is not a watcher failure.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("change watcher closed")
			}
			c.onChange(ctx, change)

		case ev, ok := <-healthEvents:
			if !ok {
				// Monitor stopped; the gate keeps its last reading.
				healthEvents = nil
				continue
			}
			c.onHealth(ctx, ev)

		case ev := <-procEvents:
			c.onProcess(ctx, ev)

		case res := <-c.builds:
			c.onBuildDone(ctx, res)

		case <-c.retryFire:
			c.onRetry(ctx)
		}
	}
}

// gateOpen reports whether builds may proceed. Unknown gates exactly like
// Unhealthy: never build before the first confirmed clean check.
func (c *Coordinator) gateOpen() bool {
	if c.health == nil {
		return true
	}
	return c.health.Health() == typecheck.HealthHealthy
}

// requestCycle handles one settled change (or its equivalents: startup and
// a health transition to Healthy). It closes any running process first and
// either starts a build or parks in Blocked.
func (c *Coordinator) requestCycle(ctx context.Context) {
	c.cancelRetry()

	if !c.gateOpen() {
		c.enterBlocked(ctx, 0)
		return
	}

	if c.state == StateRunning || c.state == StateStarting {
		c.state = StateRestarting
	}
	// Kill-before-start is strict: the old instance must release the port
	// before anything new may bind it. Kill is bounded by its failsafe, so
	// the loop never hangs here.
	if err := c.proc.Kill(ctx); err != nil {
		c.log.Warn("kill before rebuild did not complete cleanly", "error", err)
	}
	c.beginBuild(ctx)
}

// beginBuild advances the generation and launches the build off-loop.
func (c *Coordinator) beginBuild(ctx context.Context) {
	c.session.Generation++
	gen := c.session.Generation
	c.state = StateBuilding

	c.log.Debug("build started", "generation", gen)
	output.Info(fmt.Sprintf("building %s...", c.describeApp()))

	go func() {
		artifact, err := c.builder.Build(ctx, c.session.Root)
		c.builds <- buildResult{generation: gen, artifact: artifact, err: err}
	}()
}

func (c *Coordinator) onChange(ctx context.Context, change watch.Change) {
	c.log.Debug("settled change", "paths", len(change.Paths), "state", c.state.String())

	switch c.state {
	case StateBuilding:
		// Recorded, not acted on: exactly one follow-up rebuild happens
		// when the in-flight build completes.
		c.pending = true
	case StateBlocked:
		if c.gateOpen() {
			c.requestCycle(ctx)
		}
		// Otherwise stay parked; the Healthy transition will rebuild.
	default:
		c.requestCycle(ctx)
	}
}

func (c *Coordinator) onHealth(ctx context.Context, ev typecheck.Event) {
	switch ev.Health {
	case typecheck.HealthUnhealthy:
		c.enterBlocked(ctx, ev.Errors)

	case typecheck.HealthHealthy:
		// The monitor is a change source: a clean check is equivalent to
		// a settled change.
		output.Success("types are clean")
		if c.state == StateBuilding {
			c.pending = true
			return
		}
		c.requestCycle(ctx)
	}
}

// enterBlocked closes the gate: kills any live process, advances the
// generation so in-flight completions become stale, and parks.
func (c *Coordinator) enterBlocked(ctx context.Context, errCount int) {
	c.cancelRetry()

	if c.state == StateRunning || c.state == StateStarting {
		if err := c.proc.Kill(ctx); err != nil {
			c.log.Warn("kill on type failure did not complete cleanly", "error", err)
		}
	}
	// Stale-discard: anything still in flight belongs to a closed gate.
	c.session.Generation++

	if c.state != StateBlocked {
		if errCount > 0 {
			output.Error(fmt.Sprintf("%d type error(s); waiting for fixes before rebuilding", errCount))
		} else {
			output.Warning("type check in progress; waiting for a clean result")
		}
	}
	c.state = StateBlocked
}

func (c *Coordinator) onBuildDone(ctx context.Context, res buildResult) {
	if res.generation != c.session.Generation {
		c.log.Debug("discarding stale build result",
			"generation", res.generation, "current", c.session.Generation)
		return
	}
	if c.state != StateBuilding {
		// Gate closed while building; the generation bump should have made
		// this stale already, but never act on a build outside Building.
		return
	}

	if c.pending {
		// A change landed mid-build. The result is already out of date;
		// run the one follow-up cycle instead of starting stale code.
		c.pending = false
		c.requestCycle(ctx)
		return
	}

	if res.err != nil {
		var buildErr *build.Error
		if errors.As(res.err, &buildErr) {
			output.BuildFailure(buildErr)
		} else {
			output.Error(fmt.Sprintf("build failed: %v", res.err))
		}
		c.state = StateIdle
		return
	}

	c.log.Debug("build succeeded",
		"generation", res.generation,
		"files", len(res.artifact.Paths),
		"duration", res.artifact.Duration)

	c.startProcess(ctx, 0)
}

// startProcess moves to Starting and spawns the server for the current
// generation. The preceding kill has already completed.
func (c *Coordinator) startProcess(ctx context.Context, retryCount int) {
	c.state = StateStarting
	if err := c.proc.Start(ctx, c.session.Generation, retryCount); err != nil {
		output.Error(fmt.Sprintf("failed to start server: %v", err))
		c.state = StateIdle
	}
}

func (c *Coordinator) onProcess(ctx context.Context, ev supervise.Event) {
	if ev.Generation != c.session.Generation {
		c.log.Debug("discarding stale process event",
			"generation", ev.Generation, "current", c.session.Generation)
		return
	}

	switch ev.Kind {
	case supervise.EventReady:
		if c.state == StateStarting {
			c.state = StateRunning
			output.Ready(c.AppName, c.Port)
		}

	case supervise.EventExit:
		c.onExit(ctx, ev)
	}
}

func (c *Coordinator) onExit(ctx context.Context, ev supervise.Event) {
	info := ev.Exit

	switch info.Class {
	case supervise.ExitKilled:
		// Requested; whoever asked is already driving the next transition.

	case supervise.ExitPortConflict:
		output.Error(supervise.PortConflictGuidance(c.Port))
		c.state = StateIdle

	case supervise.ExitFastCrash:
		if c.retry.ShouldRetry(info.Class, ev.RetryCount) {
			attempt := ev.RetryCount + 1
			output.Warning(fmt.Sprintf("server crashed after %s (exit %d); retrying (%d/%d)",
				info.Uptime.Round(time.Millisecond), info.Code, attempt, c.retry.MaxRetries))
			c.scheduleRetry(attempt)
		} else {
			output.Error(fmt.Sprintf("server keeps crashing (exit %d, %d attempts);"+
				" waiting for the next change", info.Code, ev.RetryCount+1))
			c.state = StateIdle
		}

	case supervise.ExitStable:
		output.Info(fmt.Sprintf("server exited (code %d) after %s",
			info.Code, info.Uptime.Round(time.Second)))
		c.state = StateIdle
	}
}

func (c *Coordinator) scheduleRetry(retryCount int) {
	c.cancelRetry()
	c.nextRetry = pendingRetry{generation: c.session.Generation, retryCount: retryCount}
	c.retryTimer = time.NewTimer(c.retry.Delay)
	c.retryFire = c.retryTimer.C
	c.state = StateStarting
}

func (c *Coordinator) onRetry(ctx context.Context) {
	c.retryFire = nil
	if c.nextRetry.generation != c.session.Generation || c.state != StateStarting {
		return
	}
	c.startProcess(ctx, c.nextRetry.retryCount)
}

func (c *Coordinator) cancelRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.retryFire = nil
	c.nextRetry = pendingRetry{}
}

// shutdown kills the supervised process on the way out. Bounded by the
// supervisor's own failsafe; uses a fresh context because the loop's is
// already canceled.
func (c *Coordinator) shutdown() {
	c.cancelRetry()
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.proc.Kill(killCtx); err != nil {
		c.log.Warn("shutdown kill did not complete cleanly", "error", err)
	}
}

func (c *Coordinator) describeApp() string {
	if c.session.HasNativeActions {
		return "routes and native actions"
	}
	return "routes and actions"
}
