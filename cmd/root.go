// Package cmd holds the cmux CLI: daemon management plus the thin
// client commands that speak the IPC protocol.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "cmux",
	Short:        "Terminal multiplexer engine",
	Long:         `cmux drives pseudo-console sessions behind a local IPC daemon so UI clients can attach, detach, and reconnect without losing the terminal.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
