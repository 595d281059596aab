package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - chat request admission and streaming runtime",
	Long: `Ganymede is a single-process runtime that sits between inbound chat
requests and a text-generation backend.

It provides:
  - Per-caller rate limiting and strict-priority admission queueing
  - Resilient model streaming with retry, backoff and cancellation
  - Rolling metrics, threshold alerting and merged health reporting
  - A SQLite archive of finished request traces with cron retention`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
