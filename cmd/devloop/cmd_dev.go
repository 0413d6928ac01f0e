// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"devloop/internal/build"
	"devloop/internal/config"
	"devloop/internal/devloop"
	"devloop/internal/output"
	"devloop/internal/supervise"
	"devloop/internal/typecheck"
	"devloop/internal/watch"
)

func init() {
	devCmd.Flags().StringVar(&devRoot, "root", ".", "project root directory")
	rootCmd.AddCommand(devCmd)
}

var devRoot string

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run the development loop",
	RunE:  runDev,
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(devRoot)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	usesTyping := cfg.UsesStaticTyping()
	session := devloop.NewSession(cfg.Project.Root, usesTyping, hasNativeActions(cfg))

	// The build output (and its staging sibling) must never feed the
	// watcher, or every rebuild re-triggers itself.
	ignore := watch.NewIgnoreSet(
		[]string{cfg.OutputPath(), cfg.OutputPath() + ".staging", cfg.OutputPath() + ".old"},
		cfg.Watch.IgnoreGlobs,
	)

	watchPaths := []string{
		cfg.AppPath(),
		filepath.Join(cfg.Project.Root, cfg.Project.EnvFile),
	}
	if usesTyping {
		watchPaths = append(watchPaths, filepath.Join(cfg.Project.Root, cfg.Typecheck.ConfigFile))
	}
	for _, p := range cfg.Watch.ExtraPaths {
		watchPaths = append(watchPaths, filepath.Join(cfg.Project.Root, p))
	}

	watcher, err := watch.New(watchPaths, ignore)
	if err != nil {
		return err
	}
	defer watcher.Close()
	changes := watch.Debounce(watcher.Events(), cfg.Watch.Debounce)

	builder := build.NewCommandPipeline(cfg.Build.Command, cfg.OutputPath())

	sup := supervise.New(supervise.Config{
		Command:            cfg.Server.Command,
		Dir:                cfg.ServerPath(),
		Port:               cfg.Server.Port,
		ReadyMarker:        cfg.Server.ReadyMarker,
		Env:                cfg.Server.Env,
		StabilityThreshold: cfg.Supervise.StabilityThreshold,
		KillTimeout:        cfg.Supervise.KillTimeout,
	})

	var health devloop.HealthSource
	var monitor *typecheck.Monitor
	if usesTyping {
		monitor = typecheck.NewMonitor(cfg.Project.Root, cfg.Typecheck.Command)
		monitor.Passthrough = output.Passthrough
		health = monitor
		output.Info("static typing detected; rebuilds gate on the type checker")
	}

	coord := devloop.New(session, builder, sup, health, changes, supervise.RetryPolicy{
		MaxRetries: cfg.Supervise.MaxRetries,
		Delay:      cfg.Supervise.RetryDelay,
	})
	coord.Port = cfg.Server.Port
	coord.AppName = cfg.Project.Name

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("devloop session started",
		"session", session.ID,
		"root", session.Root,
		"typed", usesTyping,
		"port", cfg.Server.Port,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Orderly shutdown: the watcher and checker go first; the
		// coordinator kills the server itself on the way out.
		watcher.Close()
		if monitor != nil {
			monitor.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("devloop session ended", "session", session.ID)
	return nil
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// hasNativeActions only affects display text: projects with a native/
// directory under the app sources compile platform actions too.
func hasNativeActions(cfg *config.Config) bool {
	info, err := os.Stat(filepath.Join(cfg.AppPath(), "native"))
	return err == nil && info.IsDir()
}
