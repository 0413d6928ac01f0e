// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package config loads and validates the devloop.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the project root.
const FileName = "devloop.yaml"

// Config represents the complete devloop configuration for one project.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Watch     WatchConfig     `yaml:"watch"`
	Build     BuildConfig     `yaml:"build"`
	Typecheck TypecheckConfig `yaml:"typecheck"`
	Server    ServerConfig    `yaml:"server"`
	Supervise SuperviseConfig `yaml:"supervise"`
	LogLevel  string          `yaml:"log_level"`
}

// ProjectConfig holds project-level paths.
type ProjectConfig struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`
	// AppDir is the script source directory, relative to Root.
	AppDir string `yaml:"app_dir"`
	// EnvFile is watched alongside the app sources.
	EnvFile string `yaml:"env_file"`
}

// WatchConfig controls the filesystem watcher and debouncing.
type WatchConfig struct {
	// Debounce is the stability window: a change is considered settled once
	// no further event arrives for this long.
	Debounce time.Duration `yaml:"debounce"`
	// ExtraPaths are additional files or directories to watch, relative to Root.
	ExtraPaths []string `yaml:"extra_paths"`
	// IgnoreGlobs are matched against event paths and basenames.
	IgnoreGlobs []string `yaml:"ignore_globs"`
}

// BuildConfig specifies the bundler invocation.
type BuildConfig struct {
	// Command is a shell command run from the project root. The staging
	// output directory is exposed to it as $DEVLOOP_OUT.
	Command string `yaml:"command"`
	// OutputDir receives the finished artifacts, relative to Root. It is
	// excluded from the watch set.
	OutputDir string `yaml:"output_dir"`
}

// TypecheckConfig controls the optional type health monitor.
type TypecheckConfig struct {
	// Enabled may be left unset, in which case static typing is detected
	// from the presence of ConfigFile in the project root.
	Enabled *bool `yaml:"enabled"`
	// Command is the checker executable and arguments, run in watch mode.
	Command []string `yaml:"command"`
	// ConfigFile is the type-configuration file, watched when typing is on.
	ConfigFile string `yaml:"config_file"`
}

// ServerConfig describes the external pre-built server process.
type ServerConfig struct {
	// Command is the server executable and arguments.
	Command []string `yaml:"command"`
	// Dir is the server working directory, relative to Root.
	Dir string `yaml:"dir"`
	// Port the server binds; used for port-conflict guidance only.
	Port int `yaml:"port"`
	// ReadyMarker is the literal stdout substring that signals readiness.
	ReadyMarker string `yaml:"ready_marker"`
	// Env entries ("KEY=value") appended to the server environment.
	Env []string `yaml:"env"`
}

// SuperviseConfig tunes crash handling. The thresholds here were chosen
// empirically; they are configuration rather than constants for exactly
// that reason.
type SuperviseConfig struct {
	// StabilityThreshold: a process that ran at least this long before
	// exiting is considered stable and its exit is not retried.
	StabilityThreshold time.Duration `yaml:"stability_threshold"`
	// MaxRetries bounds automatic restarts after fast crashes.
	MaxRetries int `yaml:"max_retries"`
	// RetryDelay is the flat delay before a restart attempt.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// KillTimeout is the failsafe when a killed process never reports exit.
	KillTimeout time.Duration `yaml:"kill_timeout"`
}

// Load reads devloop.yaml from the given project root, applying defaults
// for anything unset. A missing file yields a pure-defaults Config.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	cfg := defaults()
	cfg.Project.Root = absRoot

	path := filepath.Join(absRoot, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	// Root always comes from the invocation, not the file.
	cfg.Project.Root = absRoot
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Project: ProjectConfig{
			AppDir:  "app",
			EnvFile: ".env",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			IgnoreGlobs: []string{
				"*.swp", "*.swx", "*~", ".#*", "4913",
			},
		},
		Build: BuildConfig{
			Command:   "npx robuild",
			OutputDir: filepath.Join("server", ".build"),
		},
		Typecheck: TypecheckConfig{
			Command:    []string{"npx", "tsc", "--watch", "--preserveWatchOutput", "--noEmit"},
			ConfigFile: "tsconfig.json",
		},
		Server: ServerConfig{
			Command:     []string{"./server/bin/appserver"},
			Dir:         "server",
			Port:        3000,
			ReadyMarker: "server is ready",
		},
		Supervise: SuperviseConfig{
			StabilityThreshold: 15 * time.Second,
			MaxRetries:         5,
			RetryDelay:         1 * time.Second,
			KillTimeout:        500 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// UsesStaticTyping reports whether this session should run the type health
// monitor. An explicit setting wins; otherwise the presence of the type
// configuration file decides.
func (c *Config) UsesStaticTyping() bool {
	if c.Typecheck.Enabled != nil {
		return *c.Typecheck.Enabled
	}
	_, err := os.Stat(filepath.Join(c.Project.Root, c.Typecheck.ConfigFile))
	return err == nil
}

// AppPath returns the absolute script source directory.
func (c *Config) AppPath() string {
	return filepath.Join(c.Project.Root, c.Project.AppDir)
}

// ServerPath returns the absolute server working directory.
func (c *Config) ServerPath() string {
	return filepath.Join(c.Project.Root, c.Server.Dir)
}

// OutputPath returns the absolute artifact output directory.
func (c *Config) OutputPath() string {
	return filepath.Join(c.Project.Root, c.Build.OutputDir)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("project root is required")
	}
	if c.Build.Command == "" {
		return fmt.Errorf("build command is required")
	}
	if c.Build.OutputDir == "" {
		return fmt.Errorf("build output directory is required")
	}
	if len(c.Server.Command) == 0 {
		return fmt.Errorf("server command is required")
	}
	if c.UsesStaticTyping() && len(c.Typecheck.Command) == 0 {
		return fmt.Errorf("typecheck command is required when static typing is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is outside valid range 1-65535", c.Server.Port)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}
	if c.Supervise.StabilityThreshold <= 0 {
		return fmt.Errorf("stability threshold must be positive")
	}
	if c.Supervise.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Supervise.KillTimeout <= 0 {
		return fmt.Errorf("kill timeout must be positive")
	}
	return nil
}
