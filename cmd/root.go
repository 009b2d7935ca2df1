// Package cmd implements the outfitter CLI.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/outfitter-ai/outfitter/internal/log"
)

var (
	debugLogs bool
	jsonLogs  bool
)

var rootCmd = &cobra.Command{
	Use:   "outfitter",
	Short: "Grounded product search over an outdoor-gear catalog",
	Long: `outfitter indexes a product catalog into PostgreSQL and answers
customer questions grounded in hybrid lexical and vector search.

Typical workflow:

  outfitter index --file assets/products.csv
  outfitter search "tent for 4 people"
  outfitter ask "I need a new tent for 4 people, what do you have?"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")
}

// newLogger builds the process logger from the persistent flags. Logs go
// to stderr so stdout stays clean for command output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debugLogs || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: jsonLogs})
}
