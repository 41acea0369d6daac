package decompose

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/promptsplit/internal/stages"
)

// StageError reports which pipeline step failed.
// Stage is set when the cause is a stage generation or extraction error.
// Key names the constraint or subtask tag being processed, if any.
type StageError struct {
	Phase Phase
	Stage stages.Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %q: %v", e.Phase, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageError wraps err with the phase and key, taking the stage from a typed stage error.
func stageError(phase Phase, key string, err error) error {
	se := &StageError{Phase: phase, Key: key, Err: err}

	var gen *stages.GenerationError
	var ext *stages.ExtractionError
	switch {
	case errors.As(err, &gen):
		se.Stage = gen.Stage
	case errors.As(err, &ext):
		se.Stage = ext.Stage
	}
	return se
}
