package decompose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/internal/stages"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// ErrConstraintNotResolved is returned when a constraint is looked up before it was resolved.
var ErrConstraintNotResolved = errors.New("constraint not resolved")

// KeyFunc maps a constraint to its identity key.
type KeyFunc func(constraint string) string

// ExactKey keys constraints by their exact text.
func ExactKey(constraint string) string {
	return constraint
}

// NormalizedKey keys constraints by their case-folded text with whitespace
// trimmed and inner runs collapsed to one space.
func NormalizedKey(constraint string) string {
	return cases.Fold().String(strings.Join(strings.Fields(constraint), " "))
}

// Validation is the validation data generated once per unique constraint.
type Validation struct {
	Strategy models.ValidationStrategy
	// ValidatorFn is nil for the llm strategy.
	ValidatorFn *string
	Report      *models.ReportSchema
}

// Registry resolves each unique constraint to its Validation exactly once.
// It is owned by a single decomposition run.
type Registry struct {
	session backend.Completer
	key     KeyFunc
	logger  *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*Validation
}

// NewRegistry creates an empty registry. A nil key function means ExactKey.
func NewRegistry(session backend.Completer, key KeyFunc, logger *slog.Logger) *Registry {
	if key == nil {
		key = ExactKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		session: session,
		key:     key,
		logger:  logger,
		cache:   make(map[string]*Validation),
	}
}

// Key returns the identity key of a constraint.
func (r *Registry) Key(constraint string) string {
	return r.key(constraint)
}

// Resolve returns the Validation of constraint, generating it on first use.
// Concurrent calls for one key share a single generation. Failures are not
// cached and are returned unchanged.
func (r *Registry) Resolve(ctx context.Context, constraint string) (*Validation, error) {
	k := r.key(constraint)
	if v, ok := r.lookupKey(k); ok {
		return v, nil
	}

	v, err, _ := r.group.Do(k, func() (any, error) {
		if v, ok := r.lookupKey(k); ok {
			return v, nil
		}
		v, err := r.generate(ctx, constraint)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[k] = v
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Validation), nil
}

// generate runs the decision, code and report stages for one constraint.
func (r *Registry) generate(ctx context.Context, constraint string) (*Validation, error) {
	decision, err := stages.ValidationDecision(ctx, r.session, constraint)
	if err != nil {
		return nil, err
	}
	strategy, err := decision.Parse()
	if err != nil {
		return nil, err
	}

	v := &Validation{Strategy: strategy}

	if strategy == models.StrategyCode {
		gen, err := stages.ValidationCode(ctx, r.session, constraint)
		if err != nil {
			return nil, err
		}
		fn, err := gen.Parse()
		if err != nil {
			return nil, err
		}
		v.ValidatorFn = &fn
	}

	report, err := stages.ValidationReport(ctx, r.session, constraint, strategy)
	if err != nil {
		return nil, err
	}
	if v.Report, err = report.Parse(); err != nil {
		return nil, err
	}

	r.logger.Debug("constraint resolved", "constraint", constraint, "strategy", strategy)
	return v, nil
}

// Lookup returns the cached Validation of constraint without generating it.
func (r *Registry) Lookup(constraint string) (*Validation, bool) {
	return r.lookupKey(r.key(constraint))
}

func (r *Registry) lookupKey(k string) (*Validation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.cache[k]
	return v, ok
}

// Len returns the number of resolved constraints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Occurrence projects the cached Validation of constraint into a ConstraintOccurrence.
// index is the 0-based position of the constraint in the global list.
func (r *Registry) Occurrence(constraint string, index int) (models.ConstraintOccurrence, error) {
	v, ok := r.Lookup(constraint)
	if !ok {
		return models.ConstraintOccurrence{}, fmt.Errorf("%w: %q", ErrConstraintNotResolved, constraint)
	}
	return models.ConstraintOccurrence{
		Constraint:    constraint,
		Strategy:      v.Strategy,
		ValidatorFn:   v.ValidatorFn,
		ValidatorName: models.ValidatorName(index),
		Report:        v.Report,
	}, nil
}
