// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-pr-stats",
	Short: "A CLI tool to summarize the pull requests of a GitHub repository.",
	Long: `github-pr-stats fetches every page of a repository's pull requests in parallel
and prints summary statistics: the number fetched, the top authors, and the
smallest and biggest time-to-close.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Persistent flags, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides PR_STATS_LOG_LEVEL")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
}
