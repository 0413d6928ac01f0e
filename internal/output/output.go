// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package output renders user-facing terminal messages. Structured
// diagnostics go through slog; this is the human channel.
package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"devloop/internal/build"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
	dim    = color.New(color.Faint)
)

// Ready prints the ready banner once the server reports readiness.
func Ready(name string, port int) {
	if name == "" {
		name = "app"
	}
	green.Printf("\n✓ %s ready on port %d\n\n", name, port)
}

// Info prints a neutral status line.
func Info(text string) {
	fmt.Printf("  → %s\n", text)
}

// Success prints a positive status line.
func Success(text string) {
	green.Printf("  → %s\n", text)
}

// Warning prints a warning.
func Warning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

// Error prints an error line.
func Error(text string) {
	red.Printf("  ✗ %s\n", text)
}

// Passthrough prints a line of subprocess output that carries no semantic
// meaning for the loop, dimmed to keep devloop's own messages readable.
func Passthrough(line string) {
	dim.Println(line)
}

// BuildFailure renders a failed build's diagnostics.
func BuildFailure(err *build.Error) {
	red.Println("  ✗ build failed")
	for _, d := range err.Diagnostics {
		fmt.Printf("      %s\n", d.String())
	}
	if len(err.Diagnostics) == 0 && strings.TrimSpace(err.Output) != "" {
		fmt.Printf("      %s\n", strings.TrimSpace(err.Output))
	}
}
