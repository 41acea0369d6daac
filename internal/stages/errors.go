package stages

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCompletion is returned when the backend produced no text.
	ErrEmptyCompletion = errors.New("completion returned no content")

	// ErrTagNotFound is returned when the expected delimited section is missing.
	ErrTagNotFound = errors.New("tag not found in completion")
)

// GenerationError reports a failed or empty backend call.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ExtractionError reports generated text that lacked the expected tag
// or whose payload did not have the expected shape.
type ExtractionError struct {
	Stage Stage
	Tag   string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: extract <%s>: %v", e.Stage, e.Tag, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is a backend generation failure.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// IsExtractionError reports whether err is a tag or payload extraction failure.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
