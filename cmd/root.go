package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mathprogress",
	Short: "Adaptive math practice engine",
	Long: "mathprogress serves practice questions at an adaptive difficulty, re-asks missed\n" +
		"questions with escalating hints, schedules spaced reviews and tracks concept mastery.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Path to SQLite database file (overrides MATHPROGRESS_DB_PATH)")
	pf.String("config", "", "Path to a YAML config file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(attemptCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(masteryCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}
