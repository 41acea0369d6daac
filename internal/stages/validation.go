package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

const (
	tagConstraints        = "constraints_and_requirements"
	tagValidationDecision = "validation_decision"
	tagValidationFunction = "validation_function"
	tagValidationReport   = "validation_report"
)

// Constraints extracts the constraints of the task prompt.
// With sameWords the model is told to copy constraints verbatim.
func Constraints(ctx context.Context, s backend.Completer, taskPrompt string, sameWords bool) (*Generated[[]string], error) {
	system := constraintsSystem
	if sameWords {
		system += constraintsSameWords
	}
	return generate(ctx, s, call{
		stage:     StageConstraints,
		system:    system,
		prompt:    fmt.Sprintf(constraintsUser, taskPrompt),
		maxTokens: 8192,
	}, ParseConstraints)
}

// ParseConstraints is the default parser of the constraint extraction stage.
// It returns the listed constraints in order; N/A yields an empty list.
// Duplicates are kept; the pipeline deduplicates with its own key function.
func ParseConstraints(text string) ([]string, error) {
	content, err := extractTag(StageConstraints, text, tagConstraints)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(content, "N/A") {
		return []string{}, nil
	}

	items := bulletLines(content)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item, "N/A") {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// ValidationDecision decides the validation strategy of a constraint.
func ValidationDecision(ctx context.Context, s backend.Completer, constraint string) (*Generated[models.ValidationStrategy], error) {
	return generate(ctx, s, call{
		stage:     StageValidationDecision,
		system:    validationDecisionSystem,
		prompt:    fmt.Sprintf(validationDecisionUser, constraint),
		maxTokens: 8192,
	}, ParseValidationDecision)
}

// ParseValidationDecision is the default parser of the validation decision stage.
func ParseValidationDecision(text string) (models.ValidationStrategy, error) {
	content, err := extractTag(StageValidationDecision, text, tagValidationDecision)
	if err != nil {
		return "", err
	}
	strategy := models.ValidationStrategy(strings.ToLower(strings.Trim(content, " \t\n\"'`.")))
	if !strategy.Valid() {
		return "", &ExtractionError{Stage: StageValidationDecision, Tag: tagValidationDecision, Err: fmt.Errorf("unknown strategy %q", content)}
	}
	return strategy, nil
}

// ValidationCode generates a validator function for a constraint.
func ValidationCode(ctx context.Context, s backend.Completer, constraint string) (*Generated[string], error) {
	return generate(ctx, s, call{
		stage:     StageValidationCode,
		system:    validationCodeSystem,
		prompt:    fmt.Sprintf(validationCodeUser, constraint),
		maxTokens: 4096,
	}, ParseValidationCode)
}

// ParseValidationCode is the default parser of the validation code stage.
func ParseValidationCode(text string) (string, error) {
	return extractTag(StageValidationCode, text, tagValidationFunction)
}

// ValidationReport generates the failure report template of a constraint.
func ValidationReport(ctx context.Context, s backend.Completer, constraint string, strategy models.ValidationStrategy) (*Generated[*models.ReportSchema], error) {
	return generate(ctx, s, call{
		stage:     StageValidationReport,
		system:    validationReportSystem,
		prompt:    fmt.Sprintf(validationReportUser, constraint, strategy),
		maxTokens: 2048,
	}, ParseValidationReport)
}

// ParseValidationReport is the default parser of the validation report stage.
// The payload must be a JSON object.
func ParseValidationReport(text string) (*models.ReportSchema, error) {
	content, err := extractTag(StageValidationReport, text, tagValidationReport)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(cleanJSON(content)), "{") {
		return nil, &ExtractionError{Stage: StageValidationReport, Tag: tagValidationReport, Err: fmt.Errorf("payload is not a JSON object")}
	}

	var report models.ReportSchema
	if err := extractJSON(StageValidationReport, text, tagValidationReport, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
