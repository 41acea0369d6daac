package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/promptsplit/internal/decompose"
	"github.com/ShayCichocki/promptsplit/internal/tui"
)

var (
	showCheck      bool
	showSequential bool
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Summarize a saved decomposition result",
	Long: `Render a JSON or YAML result written by 'promptsplit decompose' as a
human-readable summary, including the execution order of its subtasks.

With --check, exit non-zero when the dependency graph has unresolved
references or cycles. With --sequential, also print a single run order
for executing the subtasks one at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read result: %w", err)
		}
		result, err := decodeResult(args[0], data)
		if err != nil {
			return err
		}

		if showCheck {
			if err := decompose.ValidateGraph(result); err != nil {
				return err
			}
		}

		levels, err := decompose.ExecutionOrder(result)
		if err != nil {
			levels = nil
		}
		view := tui.NewSummaryView(0)
		fmt.Fprintln(cmd.OutOrStdout(), view.Render(result, levels))

		if showSequential {
			order, err := decompose.SequentialOrder(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderOrder(order))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showCheck, "check", false, "Fail when the dependency graph is invalid")
	showCmd.Flags().BoolVar(&showSequential, "sequential", false, "Also print a one-at-a-time run order")
}
