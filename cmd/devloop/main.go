// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "devloop",
	Short: "Development loop supervisor for script-backed apps",
	Long: "devloop watches your app sources, rebuilds routes and action bundles,\n" +
		"gates rebuilds on type health, and supervises the pre-built server\n" +
		"process with hot reload.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
