// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package build adapts the external bundler behind a narrow interface:
// build the project, get an artifact or a structured failure. The bundler
// itself is a black box run to completion.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfield/script"
)

// Artifact is one generation of build output: the routing metadata plus
// compiled action bundles, fully written to OutputDir.
type Artifact struct {
	OutputDir string
	Paths     []string
	Duration  time.Duration
}

// Pipeline produces build artifacts for a project root. Implementations
// must be idempotent and must fully replace previous output on success;
// a failed build leaves the previous artifact untouched.
type Pipeline interface {
	Build(ctx context.Context, root string) (*Artifact, error)
}

// CommandPipeline runs the configured bundler command through a shell.
// The command writes its output into the staging directory given to it
// as $DEVLOOP_OUT; on success the staging directory replaces OutputDir
// in one rename, so the server never observes a half-written artifact.
type CommandPipeline struct {
	Command   string
	OutputDir string
}

// NewCommandPipeline creates a pipeline for the given bundler command and
// absolute output directory.
func NewCommandPipeline(command, outputDir string) *CommandPipeline {
	return &CommandPipeline{Command: command, OutputDir: outputDir}
}

// Build runs the bundler from root. On failure it returns a *build.Error
// carrying parsed diagnostics; the partial staging output is discarded.
func (p *CommandPipeline) Build(ctx context.Context, root string) (*Artifact, error) {
	start := time.Now()

	staging := p.OutputDir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	// Exported rather than prefixed so the command's own redirects and
	// subcommands can expand $DEVLOOP_OUT. script.Exec word-splits but does
	// not evaluate shell operators, so the line runs under an explicit sh.
	cmdline := fmt.Sprintf("cd %q && export DEVLOOP_OUT=%q && %s", root, staging, p.Command)
	out, err := script.Exec("sh -c " + quoteForShell(cmdline)).String()
	if err != nil {
		_ = os.RemoveAll(staging)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if strings.TrimSpace(out) == "" {
			// A command that dies silently still gets a diagnosable failure.
			out = err.Error()
		}
		return nil, &Error{
			Diagnostics: ParseDiagnostics(out),
			Output:      out,
		}
	}

	if err := p.replaceOutput(staging); err != nil {
		return nil, err
	}

	paths, err := listFiles(p.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate artifact: %w", err)
	}

	return &Artifact{
		OutputDir: p.OutputDir,
		Paths:     paths,
		Duration:  time.Since(start),
	}, nil
}

// replaceOutput swaps staging into place. The previous output moves aside
// first so a rename failure cannot leave a mix of old and new bundles.
func (p *CommandPipeline) replaceOutput(staging string) error {
	old := p.OutputDir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("failed to clear previous artifact backup: %w", err)
	}

	if _, err := os.Stat(p.OutputDir); err == nil {
		if err := os.Rename(p.OutputDir, old); err != nil {
			return fmt.Errorf("failed to move previous artifact aside: %w", err)
		}
	}

	if err := os.Rename(staging, p.OutputDir); err != nil {
		// Best effort restore of the previous artifact.
		_ = os.Rename(old, p.OutputDir)
		return fmt.Errorf("failed to publish artifact: %w", err)
	}

	_ = os.RemoveAll(old)
	return nil
}

// quoteForShell single-quotes s for the wrapping sh invocation.
func quoteForShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func listFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// Error is a failed build with human-readable diagnostics. The coordinator
// reports it and returns to waiting; it never ends the session.
type Error struct {
	Diagnostics []Diagnostic
	Output      string
}

func (e *Error) Error() string {
	if len(e.Diagnostics) == 0 {
		return "build failed"
	}
	return fmt.Sprintf("build failed: %s", e.Diagnostics[0].String())
}

// Diagnostic is one bundler complaint, with a source location when the
// bundler provided one.
type Diagnostic struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Col, d.Message)
}

// ParseDiagnostics extracts structured diagnostics from bundler output.
// Lines shaped like "file:line:col: message" yield located diagnostics;
// lines mentioning an error yield message-only ones. If nothing matches,
// the first non-empty line stands in so the failure is never silent.
func ParseDiagnostics(out string) []Diagnostic {
	var diags []Diagnostic
	var firstLine string

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if firstLine == "" {
			firstLine = line
		}
		if d, ok := parseLocated(line); ok {
			diags = append(diags, d)
			continue
		}
		if containsErrorWord(line) {
			diags = append(diags, Diagnostic{Message: line})
		}
	}

	if len(diags) == 0 && firstLine != "" {
		diags = append(diags, Diagnostic{Message: firstLine})
	}
	return diags
}

// parseLocated recognizes "path:line:col: message".
func parseLocated(line string) (Diagnostic, bool) {
	parts := strings.SplitN(line, ":", 4)
	if len(parts) != 4 {
		return Diagnostic{}, false
	}
	lineNo, err1 := atoi(parts[1])
	colNo, err2 := atoi(parts[2])
	if err1 != nil || err2 != nil {
		return Diagnostic{}, false
	}
	msg := strings.TrimSpace(parts[3])
	msg = strings.TrimPrefix(msg, "error: ")
	if msg == "" {
		return Diagnostic{}, false
	}
	return Diagnostic{File: parts[0], Line: lineNo, Col: colNo, Message: msg}, true
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n, err
}

func containsErrorWord(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "[error]")
}
