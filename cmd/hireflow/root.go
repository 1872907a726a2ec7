package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hireflow/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	dbPath    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "hireflow",
	Short: "Graph-driven recruitment workflow engine",
	Long: "Hireflow models hiring processes as graphs of interview, task, and\n" +
		"decision stages, and drives candidates through them stage by stage.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.dbPath, "db", defaultDBPath(), "SQLite database path")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(workloadCmd)
	rootCmd.Version = version
}
