// Package cmd defines the docqa CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "docqa answers questions over a private document collection",
	Long: `docqa serves grounded answers over an indexed document collection.

It combines dense vector search with full-text search, fuses both
rankings, and generates answers with the configured model provider.
Run "docqa serve" to start the HTTP API or "docqa ask" for a one-shot
question from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
