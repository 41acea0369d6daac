package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/promptsplit/internal/logging"
)

var (
	debugFlag bool
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "promptsplit",
	Short: "Decompose task prompts into validated subtasks",
	Long: `promptsplit splits a task prompt into subtasks, each with its own prompt
template, the constraints it must satisfy, and a validator for every
constraint. The result is a dependency graph of subtasks that downstream
executors can run in order.

Core capabilities:
- Extracts subtasks and constraints with a text-generation backend
- Generates a code or model-based validator per constraint
- Resolves subtask inputs into a dependency graph
- Records every run in a local history database`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printStatus("✗", err.Error(), color.FgRed)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Write debug logs to .promptsplit/logs/debug.log")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Console log level (debug, info, warn, error)")

	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging installs the process logger from the persistent flags.
func setupLogging() (*slog.Logger, func() error, error) {
	opts := logging.Options{Level: logging.ParseLevel(logLevel)}
	if debugFlag {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("get working directory: %w", err)
		}
		opts.DebugFile = logging.DebugLogPath(cwd)
	}
	return logging.Setup(opts)
}

// printStatus prints a colored status line to stderr.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(os.Stderr, "%s %s\n", c.Sprint(symbol), message)
}
