// Package decompose splits a task prompt into subtasks with prompt templates,
// validated constraints and a dependency graph.
package decompose

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/internal/graph"
	"github.com/ShayCichocki/promptsplit/internal/stages"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

var (
	// ErrUnresolvedDependency is returned when a subtask references a variable no subtask produces.
	ErrUnresolvedDependency = graph.ErrUnresolvedDependency
	// ErrDependencyCycle is returned when subtask dependencies form a cycle.
	ErrDependencyCycle = graph.ErrCycleDetected
)

// Request is the input of one decomposition run.
type Request struct {
	// TaskPrompt is the task to decompose.
	TaskPrompt string
	// InputVars are the variable names the caller supplies at execution time.
	InputVars []string
}

// Option configures a Decomposer. Use With* functions to create Options.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	events        *EventEmitter
	concurrency   int
	validateGraph bool
	keyFunc       KeyFunc
	sameWords     bool
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEvents sets the emitter that receives progress events.
func WithEvents(e *EventEmitter) Option {
	return func(o *options) { o.events = e }
}

// WithConcurrency bounds parallel constraint resolution and subtask assembly.
// Values below 1 mean sequential execution.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithGraphValidation enables or disables the dependency graph check.
func WithGraphValidation(enabled bool) Option {
	return func(o *options) { o.validateGraph = enabled }
}

// WithNormalizedConstraints keys constraints by NormalizedKey instead of their exact text.
func WithNormalizedConstraints(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.keyFunc = NormalizedKey
		} else {
			o.keyFunc = ExactKey
		}
	}
}

// WithSameWords asks the constraint extractor to keep the task prompt's wording.
func WithSameWords(enabled bool) Option {
	return func(o *options) { o.sameWords = enabled }
}

// Decomposer runs the decomposition pipeline against one backend session.
type Decomposer struct {
	session backend.Completer
	opts    options
}

// New creates a Decomposer.
func New(session backend.Completer, opts ...Option) *Decomposer {
	o := options{
		logger:        slog.Default(),
		concurrency:   1,
		validateGraph: true,
		keyFunc:       ExactKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return &Decomposer{session: session, opts: o}
}

// Run resolves the backend configuration into a session and decomposes req.
// A missing backend precondition fails before any generation call.
func Run(ctx context.Context, req Request, cfg backend.Config, opts ...Option) (*models.Result, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	session, err := backend.New(cfg, backend.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return New(session, opts...).Decompose(ctx, req)
}

// Decompose runs every stage in order and returns the assembled result.
// Any stage failure aborts the run; no partial result is returned.
func (d *Decomposer) Decompose(ctx context.Context, req Request) (*models.Result, error) {
	result, err := d.decompose(ctx, req)
	if err != nil {
		d.emit(Event{Type: EventRunFailed, Error: err})
		d.opts.logger.Error("decomposition failed", "error", err)
		return nil, err
	}
	d.emit(Event{Type: EventRunDone, Count: len(result.Subtasks)})
	return result, nil
}

func (d *Decomposer) decompose(ctx context.Context, req Request) (*models.Result, error) {
	log := d.opts.logger

	// Stage 1: subtasks.
	d.started(PhaseSubtasks)
	gen, err := stages.SubtaskList(ctx, d.session, req.TaskPrompt)
	if err != nil {
		return nil, stageError(PhaseSubtasks, "", err)
	}
	items, err := gen.Parse()
	if err != nil {
		return nil, stageError(PhaseSubtasks, "", err)
	}
	d.completed(PhaseSubtasks, len(items))
	log.Info("subtasks identified", "count", len(items))

	// Stage 2: constraints, deduplicated in first-appearance order.
	registry := NewRegistry(d.session, d.opts.keyFunc, log)

	d.started(PhaseConstraint)
	cgen, err := stages.Constraints(ctx, d.session, req.TaskPrompt, d.opts.sameWords)
	if err != nil {
		return nil, stageError(PhaseConstraint, "", err)
	}
	raw, err := cgen.Parse()
	if err != nil {
		return nil, stageError(PhaseConstraint, "", err)
	}
	constraints, positions := dedupe(raw, registry.Key)
	d.completed(PhaseConstraint, len(constraints))
	log.Info("constraints identified", "count", len(constraints), "duplicates", len(raw)-len(constraints))

	// Stage 3: validation data, one resolution per unique constraint.
	// Positions are fixed above so val_fn names never depend on completion order.
	d.started(PhaseValidation)
	if err := d.resolveAll(ctx, registry, constraints); err != nil {
		return nil, err
	}
	identified := make([]models.ConstraintOccurrence, len(constraints))
	for i, c := range constraints {
		if identified[i], err = registry.Occurrence(c, i); err != nil {
			return nil, stageError(PhaseValidation, c, err)
		}
	}
	d.completed(PhaseValidation, len(identified))

	// Stage 4: prompt templates.
	d.started(PhasePrompts)
	pgen, err := stages.SubtaskPrompts(ctx, d.session, req.TaskPrompt, req.InputVars, items)
	if err != nil {
		return nil, stageError(PhasePrompts, "", err)
	}
	prompts, err := pgen.Parse()
	if err != nil {
		return nil, stageError(PhasePrompts, "", err)
	}
	d.completed(PhasePrompts, len(prompts))

	// Dependencies are fixed once the templates exist.
	if d.opts.validateGraph {
		d.started(PhaseGraph)
		g, err := graph.Build(templateSubtasks(prompts, req.InputVars))
		if err != nil {
			return nil, stageError(PhaseGraph, "", err)
		}
		d.completed(PhaseGraph, g.Size())
	}

	// Stage 5: constraint assignment.
	d.started(PhaseAssign)
	agen, err := stages.ConstraintAssign(ctx, d.session, prompts, constraints)
	if err != nil {
		return nil, stageError(PhaseAssign, "", err)
	}
	assigned, err := agen.Parse()
	if err != nil {
		return nil, stageError(PhaseAssign, "", err)
	}
	d.reportUnassigned(constraints, assigned, registry.Key)
	d.completed(PhaseAssign, len(assigned))

	// Stage 6: assembly.
	d.started(PhaseAssemble)
	asm := &assembler{
		session:   d.session,
		registry:  registry,
		positions: positions,
		external:  req.InputVars,
	}
	subtasks, err := d.assembleAll(ctx, asm, assigned)
	if err != nil {
		return nil, err
	}
	d.completed(PhaseAssemble, len(subtasks))

	descriptions := make([]string, len(items))
	for i, it := range items {
		descriptions[i] = it.Description
	}

	return &models.Result{
		OriginalTaskPrompt:    req.TaskPrompt,
		SubtaskList:           descriptions,
		IdentifiedConstraints: identified,
		Subtasks:              subtasks,
	}, nil
}

// templateSubtasks returns the tags and dependencies the prompt templates declare.
func templateSubtasks(prompts []stages.SubtaskPrompt, external []string) []models.Subtask {
	subtasks := make([]models.Subtask, len(prompts))
	for i, p := range prompts {
		_, deps := ScanVariables(p.PromptTemplate, external)
		subtasks[i] = models.Subtask{Tag: p.Tag, DependsOn: deps}
	}
	return subtasks
}

// resolveAll resolves every constraint, in parallel when concurrency allows.
func (d *Decomposer) resolveAll(ctx context.Context, registry *Registry, constraints []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.concurrency)

	for _, c := range constraints {
		g.Go(func() error {
			v, err := registry.Resolve(gctx, c)
			if err != nil {
				return stageError(PhaseValidation, c, err)
			}
			d.emit(Event{Type: EventConstraintResolved, Phase: PhaseValidation, Constraint: c})
			d.opts.logger.Debug("validation ready", "constraint", c, "strategy", v.Strategy)
			return nil
		})
	}
	return g.Wait()
}

// assembleAll builds subtask records, keeping the input order.
func (d *Decomposer) assembleAll(ctx context.Context, asm *assembler, assigned []stages.SubtaskPromptConstraints) ([]models.Subtask, error) {
	subtasks := make([]models.Subtask, len(assigned))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.concurrency)

	for i, raw := range assigned {
		g.Go(func() error {
			st, err := asm.assemble(gctx, raw)
			if err != nil {
				return err
			}
			subtasks[i] = st
			d.emit(Event{Type: EventSubtaskAssembled, Phase: PhaseAssemble, Tag: st.Tag})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return subtasks, nil
}

// reportUnassigned warns about constraints no subtask received.
func (d *Decomposer) reportUnassigned(constraints []string, assigned []stages.SubtaskPromptConstraints, key KeyFunc) {
	used := make(map[string]bool)
	for _, a := range assigned {
		for _, c := range a.Constraints {
			used[key(c)] = true
		}
	}
	for _, c := range constraints {
		if !used[key(c)] {
			d.opts.logger.Warn("constraint not assigned to any subtask", "constraint", c)
			d.emit(Event{Type: EventConstraintUnassigned, Phase: PhaseAssign, Constraint: c})
		}
	}
}

func (d *Decomposer) started(p Phase) {
	d.emit(Event{Type: EventStageStarted, Phase: p})
}

func (d *Decomposer) completed(p Phase, count int) {
	d.emit(Event{Type: EventStageCompleted, Phase: p, Count: count})
}

func (d *Decomposer) emit(e Event) {
	if d.opts.events != nil {
		d.opts.events.Emit(e)
	}
}

// dedupe drops constraints whose key was already seen, keeping first appearances.
// It returns the unique constraints and each key's 0-based position.
func dedupe(raw []string, key KeyFunc) ([]string, map[string]int) {
	unique := make([]string, 0, len(raw))
	positions := make(map[string]int, len(raw))
	for _, c := range raw {
		k := key(c)
		if _, seen := positions[k]; seen {
			continue
		}
		positions[k] = len(unique)
		unique = append(unique, c)
	}
	return unique, positions
}

// ValidateGraph checks that every depends_on variable names a subtask and
// that the dependencies are acyclic.
func ValidateGraph(result *models.Result) error {
	_, err := graph.Build(result.Subtasks)
	return err
}

// ExecutionOrder groups the subtasks of result into batches that can run in order,
// each batch depending only on earlier ones.
func ExecutionOrder(result *models.Result) ([][]string, error) {
	g, err := graph.Build(result.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	return g.Levels(), nil
}

// SequentialOrder returns the subtask tags of result in an order where every
// subtask follows the subtasks it depends on. Independent subtasks keep their
// original order.
func SequentialOrder(result *models.Result) ([]string, error) {
	g, err := graph.Build(result.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	return g.TopologicalSort(), nil
}
