package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/promptsplit/internal/config"
	"github.com/ShayCichocki/promptsplit/internal/decompose"
	"github.com/ShayCichocki/promptsplit/internal/history"
	"github.com/ShayCichocki/promptsplit/internal/tui"
)

var (
	historyLimit  int
	historyFailed bool
	historyFormat string
	historyRaw    bool
	purgeOlder    time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded decomposition runs",
	Long: `List, show and delete decomposition runs recorded in the history database.

Run IDs may be abbreviated to any unique prefix.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		opts := history.ListOptions{Limit: historyLimit}
		if historyFailed {
			opts.Status = history.RunFailed
		}
		runs, err := db.ListRuns(opts)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Run 'promptsplit decompose' to start.")
			return nil
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyRaw {
			if run.Result == nil {
				return fmt.Errorf("run %s has no result: %s", run.ShortID(), run.Error)
			}
			return encodeResult(out, run.Result, historyFormat)
		}

		printRunHeader(out, run)
		if run.Result != nil {
			levels, _ := decompose.ExecutionOrder(run.Result)
			fmt.Fprintln(out, tui.NewSummaryView(0).Render(run.Result, levels))
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		var errs []error
		for _, id := range args {
			run, err := db.GetRun(id)
			if err == nil {
				err = db.DeleteRun(run.ID)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			printStatus("✓", "Deleted run "+run.ShortID(), color.FgGreen)
		}
		return errors.Join(errs...)
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete runs older than a duration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOldRuns(purgeOlder)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Purged %d runs older than %s", n, purgeOlder), color.FgGreen)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 = all)")
	historyListCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only list failed runs")
	historyShowCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print the stored result instead of the summary")
	historyShowCmd.Flags().StringVar(&historyFormat, "format", formatJSON, "Format for --raw (json or yaml)")
	historyPurgeCmd.Flags().DurationVar(&purgeOlder, "older-than", 30*24*time.Hour, "Age threshold")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// openHistory opens the configured history database.
func openHistory() (*history.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

// printRuns writes a table of runs.
func printRuns(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tBACKEND\tSUBTASKS\tTOKENS\tPROMPT")
	for i := range runs {
		run := &runs[i]
		subtasks := "-"
		if run.Result != nil {
			subtasks = fmt.Sprintf("%d", len(run.Result.Subtasks))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ShortID(),
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			statusString(run.Status),
			run.Backend,
			subtasks,
			run.InputTokens+run.OutputTokens,
			truncate(run.TaskPrompt, 50))
	}
	return tw.Flush()
}

// printRunHeader writes the metadata of one run.
func printRunHeader(w io.Writer, run *history.Run) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Created:  %s\n", run.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Status:   %s\n", statusString(run.Status))
	fmt.Fprintf(w, "Backend:  %s (%s)\n", run.Backend, run.Model)
	fmt.Fprintf(w, "Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Tokens:   %d in / %d out over %d calls\n", run.InputTokens, run.OutputTokens, run.Calls)
	if len(run.InputVars) > 0 {
		fmt.Fprintf(w, "Inputs:   %s\n", strings.Join(run.InputVars, ", "))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", color.RedString(run.Error))
	}
	fmt.Fprintln(w)
}

func statusString(s history.RunStatus) string {
	switch s {
	case history.RunSucceeded:
		return color.GreenString(string(s))
	case history.RunFailed:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

// truncate shortens s to n runes on one line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
