package decompose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/promptsplit/internal/stages"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

func TestRegistry_ResolveCaches(t *testing.T) {
	b := newScriptedBackend()
	r := NewRegistry(b, nil, nil)

	first, err := r.Resolve(context.Background(), "no uppercase")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), "no uppercase")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if first != second {
		t.Error("second Resolve should return the cached value")
	}
	if first.Strategy != models.StrategyCode || first.ValidatorFn == nil || first.Report == nil {
		t.Errorf("unexpected validation %+v", first)
	}
	if got := b.count("validation_decision|no uppercase"); got != 1 {
		t.Errorf("decision calls = %d, want 1", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	b := newScriptedBackend()
	b.delay = 10 * time.Millisecond
	r := NewRegistry(b, nil, nil)

	var wg sync.WaitGroup
	results := make([]*Validation, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), "no uppercase")
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Resolve %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("Resolve %d returned a different value", i)
		}
	}
	for _, key := range []string{
		"validation_decision|no uppercase",
		"validation_code_generator|no uppercase",
		"validation_report_generator|no uppercase",
	} {
		if got := b.count(key); got != 1 {
			t.Errorf("calls[%s] = %d, want 1", key, got)
		}
	}
}

func TestRegistry_FailuresAreNotCached(t *testing.T) {
	b := newScriptedBackend()
	b.failures[stages.StageValidationReport] = errors.New("overloaded")
	r := NewRegistry(b, nil, nil)

	if _, err := r.Resolve(context.Background(), "cite sources"); !stages.IsGenerationError(err) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if _, ok := r.Lookup("cite sources"); ok {
		t.Fatal("failed resolution should not be cached")
	}

	b.mu.Lock()
	delete(b.failures, stages.StageValidationReport)
	b.mu.Unlock()

	v, err := r.Resolve(context.Background(), "cite sources")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if v.Strategy != models.StrategyLLM || v.ValidatorFn != nil {
		t.Errorf("unexpected validation %+v", v)
	}
	if got := b.count("validation_decision|cite sources"); got != 2 {
		t.Errorf("decision calls = %d, want 2", got)
	}
}

func TestRegistry_LookupNeverResolves(t *testing.T) {
	b := newScriptedBackend()
	r := NewRegistry(b, nil, nil)

	if _, ok := r.Lookup("no uppercase"); ok {
		t.Error("Lookup should miss on an empty registry")
	}
	if _, err := r.Occurrence("no uppercase", 0); !errors.Is(err, ErrConstraintNotResolved) {
		t.Errorf("expected ErrConstraintNotResolved, got %v", err)
	}
	if got := b.count("validation_decision|no uppercase"); got != 0 {
		t.Errorf("decision calls = %d, want 0", got)
	}
}

func TestRegistry_Occurrence(t *testing.T) {
	r := NewRegistry(newScriptedBackend(), nil, nil)
	if _, err := r.Resolve(context.Background(), "no uppercase"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	occ, err := r.Occurrence("no uppercase", 4)
	if err != nil {
		t.Fatalf("Occurrence failed: %v", err)
	}
	if occ.ValidatorName != "val_fn_5" {
		t.Errorf("ValidatorName = %q, want val_fn_5", occ.ValidatorName)
	}
	if occ.Constraint != "no uppercase" || occ.Strategy != models.StrategyCode {
		t.Errorf("unexpected occurrence %+v", occ)
	}
}

func TestNormalizedKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"No Uppercase", "no uppercase", true},
		{"  no   uppercase\n", "no uppercase", true},
		{"no uppercase", "no uppercase letters", false},
	}
	for _, tt := range tests {
		if got := NormalizedKey(tt.a) == NormalizedKey(tt.b); got != tt.same {
			t.Errorf("NormalizedKey(%q) == NormalizedKey(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
	if ExactKey("No Uppercase") == ExactKey("no uppercase") {
		t.Error("ExactKey should be case sensitive")
	}
}
