package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/internal/config"
	"github.com/ShayCichocki/promptsplit/internal/decompose"
	"github.com/ShayCichocki/promptsplit/internal/history"
	"github.com/ShayCichocki/promptsplit/internal/tui"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

var (
	decomposeInputVars  []string
	decomposeFile       string
	decomposeOutput     string
	decomposeWatch      bool
	decomposeNoProgress bool
	decomposeNoHistory  bool
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose [prompt]",
	Short: "Decompose a task prompt into subtasks",
	Long: `Decompose a task prompt into subtasks with prompt templates, assigned
constraints and validators.

The prompt is taken from the argument, from --file, or from stdin when the
argument is "-" or omitted. Declare variables the caller will supply at
execution time with --input-var; reference them in the prompt as {{name}}.

The result is written as JSON (or YAML with --format yaml) to stdout or to
--output. Every run is recorded in the history database unless
--no-history is set.

Examples:
  promptsplit decompose "Write a blog post about {{topic}}" -i topic
  promptsplit decompose -f task.txt -i topic -i audience -o plan.yaml
  promptsplit decompose -f task.txt --watch --backend anthropic`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecompose,
}

func init() {
	f := decomposeCmd.Flags()
	f.StringSliceVarP(&decomposeInputVars, "input-var", "i", nil, "Input variable supplied at execution time (repeatable)")
	f.StringVarP(&decomposeFile, "file", "f", "", "Read the task prompt from a file")
	f.StringVarP(&decomposeOutput, "output", "o", "", "Write the result to a file instead of stdout")
	f.BoolVar(&decomposeWatch, "watch", false, "Re-run whenever --file changes")
	f.BoolVar(&decomposeNoProgress, "no-progress", false, "Disable the progress view")
	f.BoolVar(&decomposeNoHistory, "no-history", false, "Do not record this run in history")
	addOverrideFlags(f)
}

// addOverrideFlags registers the flags read by applyFlagOverrides.
func addOverrideFlags(f *pflag.FlagSet) {
	f.String("backend", "", "Backend kind (ollama, openai, anthropic)")
	f.String("model", "", "Model identifier")
	f.String("endpoint", "", "Backend base URL")
	f.String("api-key", "", "Backend API key")
	f.Duration("timeout", 0, "Per-request timeout (e.g. 2m)")
	f.String("format", "", "Output format (json or yaml)")
	f.Int("concurrency", 0, "Parallel constraint resolutions and subtask assemblies")
	f.Bool("permissive", false, "Accept unresolved or cyclic subtask dependencies")
	f.Bool("normalize", false, "Treat constraints differing only in case or whitespace as one")
}

// applyFlagOverrides copies explicitly set flags over the loaded configuration.
func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	str("backend", &cfg.Backend.Kind)
	str("model", &cfg.Backend.Model)
	str("endpoint", &cfg.Backend.Endpoint)
	str("api-key", &cfg.Backend.APIKey)
	str("format", &cfg.Output.Format)

	if err == nil && flags.Changed("timeout") {
		cfg.Backend.Timeout, err = flags.GetDuration("timeout")
	}
	if err == nil && flags.Changed("concurrency") {
		cfg.Pipeline.Concurrency, err = flags.GetInt("concurrency")
	}
	if err == nil && flags.Changed("permissive") {
		var permissive bool
		permissive, err = flags.GetBool("permissive")
		cfg.Pipeline.ValidateGraph = !permissive
	}
	if err == nil && flags.Changed("normalize") {
		cfg.Pipeline.NormalizeConstraints, err = flags.GetBool("normalize")
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// readPrompt returns the task prompt from the file, the argument, or stdin.
func readPrompt(args []string, file string, stdin io.Reader) (string, error) {
	var prompt string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(data)
	case len(args) == 1 && args[0] != "-":
		prompt = args[0]
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(data)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("task prompt is empty")
	}
	return prompt, nil
}

func runDecompose(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}
	if decomposeWatch && decomposeFile == "" {
		return errors.New("--watch requires --file")
	}
	if decomposeOutput != "" && !cmd.Flags().Changed("format") {
		cfg.Output.Format = formatForPath(decomposeOutput, cfg.Output.Format)
	}

	logger, closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var store history.RunStore
	if cfg.History.Enabled && !decomposeNoHistory {
		path := cfg.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		db, err := history.Open(path)
		if err != nil {
			logger.Warn("history disabled", "path", path, "error", err)
		} else {
			store = db
			defer db.Close()
		}
	}

	r := &decomposeRunner{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		stdin:    cmd.InOrStdin(),
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
		progress: !decomposeNoProgress && isTerminal(os.Stderr) && isTerminal(os.Stdin),
	}

	if decomposeWatch {
		printStatus("●", fmt.Sprintf("Watching %s (Ctrl+C to stop)", decomposeFile), color.FgCyan)
		return watchFile(ctx, decomposeFile, watchDebounce, logger, func(ctx context.Context) error {
			return r.once(ctx, args)
		}, func(err error) {
			printStatus("✗", err.Error(), color.FgRed)
		})
	}
	return r.once(ctx, args)
}

// decomposeRunner runs one decomposition and reports it.
type decomposeRunner struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    history.RunStore
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	progress bool
}

func (r *decomposeRunner) once(ctx context.Context, args []string) error {
	prompt, err := readPrompt(args, decomposeFile, r.stdin)
	if err != nil {
		return err
	}

	bcfg, err := r.cfg.BackendConfig()
	if err != nil {
		return err
	}
	session, err := backend.New(bcfg, backend.WithLogger(r.logger))
	if err != nil {
		return err
	}

	req := decompose.Request{TaskPrompt: prompt, InputVars: decomposeInputVars}
	run := history.NewRun(prompt, req.InputVars, string(session.Kind()), session.Model())
	start := time.Now()

	result, err := r.decompose(ctx, session, req)

	in, out := session.Tracker().Total()
	run.InputTokens, run.OutputTokens = in, out
	run.Calls = session.Tracker().Calls()
	run.Duration = time.Since(start)
	if err != nil {
		run.Fail(err)
	} else {
		run.Succeed(result)
	}
	r.record(run)

	if err != nil {
		return err
	}

	if r.progress {
		levels, _ := decompose.ExecutionOrder(result)
		fmt.Fprintln(r.stderr, tui.NewSummaryView(0).Render(result, levels))
	}
	if err := writeResult(r.stdout, decomposeOutput, result, r.cfg.Output.Format); err != nil {
		return err
	}

	printStatus("✓", fmt.Sprintf("%d subtasks, %d constraints in %s (%d calls, %d/%d tokens, run %s)",
		len(result.Subtasks), len(result.IdentifiedConstraints),
		run.Duration.Round(time.Millisecond), run.Calls, in, out, run.ShortID()), color.FgGreen)
	if decomposeOutput != "" {
		printStatus("✓", "Wrote "+decomposeOutput, color.FgGreen)
	}
	return nil
}

// decompose runs the pipeline, showing the progress view when enabled.
func (r *decomposeRunner) decompose(ctx context.Context, session *backend.Session, req decompose.Request) (*models.Result, error) {
	opts := []decompose.Option{
		decompose.WithLogger(r.logger),
		decompose.WithConcurrency(r.cfg.Pipeline.Concurrency),
		decompose.WithGraphValidation(r.cfg.Pipeline.ValidateGraph),
		decompose.WithNormalizedConstraints(r.cfg.Pipeline.NormalizeConstraints),
	}
	if !r.progress {
		return decompose.New(session, opts...).Decompose(ctx, req)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	emitter := decompose.NewEventEmitter(64)
	d := decompose.New(session, append(opts, decompose.WithEvents(emitter))...)

	type outcome struct {
		result *models.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer emitter.Close()
		result, err := d.Decompose(ctx, req)
		done <- outcome{result, err}
	}()

	model, viewErr := tui.RunProgress(emitter.Events(), cancel, r.stdin, r.stderr)
	if viewErr != nil {
		r.logger.Warn("progress view failed", "error", viewErr)
	}
	if model != nil && model.Canceled() {
		cancel()
	}

	o := <-done
	if o.err != nil && model != nil && model.Canceled() {
		return nil, fmt.Errorf("canceled: %w", o.err)
	}
	return o.result, o.err
}

// record saves run to history; failures only warn.
func (r *decomposeRunner) record(run *history.Run) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(run); err != nil {
		r.logger.Warn("failed to record run", "id", run.ID, "error", err)
	}
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
