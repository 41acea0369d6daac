// Package stages implements the generation steps of the decomposition pipeline.
//
// Every stage follows one contract: Generate calls the backend and returns a
// Generated value holding the raw completion; Parse turns that text into the
// stage's typed output. Generate fails with *GenerationError, Parse with
// *ExtractionError.
package stages

import (
	"context"
	"strings"

	"github.com/ShayCichocki/promptsplit/internal/backend"
)

// Stage names a generation step.
type Stage string

const (
	StageSubtaskList         Stage = "subtask_list"
	StageConstraints         Stage = "constraint_extractor"
	StageValidationDecision  Stage = "validation_decision"
	StageValidationCode      Stage = "validation_code_generator"
	StageValidationReport    Stage = "validation_report_generator"
	StageSubtaskPrompts      Stage = "subtask_prompt_generator"
	StageConstraintAssign    Stage = "subtask_constraint_assign"
	StageGeneralInstructions Stage = "general_instructions"
)

// Parser converts generated text into a stage output.
type Parser[T any] func(text string) (T, error)

// Generated is the raw output of a stage together with its parser.
type Generated[T any] struct {
	stage  Stage
	text   string
	parser Parser[T]
}

// Text returns the raw completion text.
func (g *Generated[T]) Text() string {
	return g.text
}

// Stage returns the stage that produced the text.
func (g *Generated[T]) Stage() Stage {
	return g.stage
}

// Parse runs the parser over the generated text.
func (g *Generated[T]) Parse() (T, error) {
	return g.parser(g.text)
}

// WithParser returns a copy of g that parses with p instead of the stage default.
func (g *Generated[T]) WithParser(p Parser[T]) *Generated[T] {
	return &Generated[T]{stage: g.stage, text: g.text, parser: p}
}

// call describes one completion request for a stage.
type call struct {
	stage     Stage
	system    string
	prompt    string
	maxTokens int
}

// generate runs one completion at temperature 0 and wraps the text.
func generate[T any](ctx context.Context, s backend.Completer, c call, parser Parser[T]) (*Generated[T], error) {
	out, err := s.Complete(ctx, backend.Request{
		Stage:       string(c.stage),
		System:      c.system,
		Prompt:      c.prompt,
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, &GenerationError{Stage: c.stage, Err: err}
	}
	if out == nil || strings.TrimSpace(out.Text) == "" {
		return nil, &GenerationError{Stage: c.stage, Err: ErrEmptyCompletion}
	}

	return &Generated[T]{stage: c.stage, text: out.Text, parser: parser}, nil
}
