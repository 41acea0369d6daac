package models

import "fmt"

// ReportSchema is the structured failure report a validator fills in at runtime.
// A nil IsValid means the outcome is unknown.
type ReportSchema struct {
	// IsValid reports whether the constraint holds (nil when undetermined).
	IsValid *bool `json:"is_valid" yaml:"is_valid"`
	// ErrorType classifies the failure, if any.
	ErrorType *string `json:"error_type" yaml:"error_type"`
	// ErrorTrackback locates the error in the checked output.
	ErrorTrackback *string `json:"error_trackback" yaml:"error_trackback"`
	// FailureCause explains why the constraint failed.
	FailureCause *string `json:"failure_cause" yaml:"failure_cause"`
	// FailureTrackback points at the part of the output that caused the failure.
	FailureTrackback *string `json:"failure_trackback" yaml:"failure_trackback"`
}

// ConstraintOccurrence is a constraint together with its cached validation data.
type ConstraintOccurrence struct {
	// Constraint is the natural-language requirement.
	Constraint string `json:"constraint" yaml:"constraint"`
	// Strategy is how the constraint is validated.
	Strategy ValidationStrategy `json:"val_strategy" yaml:"val_strategy"`
	// ValidatorFn is the generated validator body; nil for the llm strategy.
	ValidatorFn *string `json:"val_fn" yaml:"val_fn"`
	// ValidatorName is val_fn_<k>, k being the 1-based global constraint position.
	ValidatorName string `json:"val_fn_name" yaml:"val_fn_name"`
	// Report is the failure report template for this constraint.
	Report *ReportSchema `json:"val_report" yaml:"val_report"`
}

// ValidatorName returns the display name for the constraint at the given
// 0-based position of the global constraint list.
func ValidatorName(index int) string {
	return fmt.Sprintf("val_fn_%d", index+1)
}

// Subtask is one decomposed unit of work.
type Subtask struct {
	// Description is the natural-language description of the subtask.
	Description string `json:"subtask" yaml:"subtask"`
	// Tag identifies the subtask; other templates reference its output by this name.
	Tag string `json:"tag" yaml:"tag"`
	// Constraints assigned to this subtask.
	Constraints []ConstraintOccurrence `json:"constraints" yaml:"constraints"`
	// PromptTemplate contains {{variable}} placeholders.
	PromptTemplate string `json:"prompt_template" yaml:"prompt_template"`
	// GeneralInstructions are derived from the prompt template.
	GeneralInstructions string `json:"general_instructions" yaml:"general_instructions"`
	// InputVarsRequired are variables supplied by the external caller.
	InputVarsRequired []string `json:"input_vars_required" yaml:"input_vars_required"`
	// DependsOn are variables supplied by other subtasks' outputs.
	DependsOn []string `json:"depends_on" yaml:"depends_on"`
}

// Result is the output of one decomposition run.
type Result struct {
	// OriginalTaskPrompt is the prompt that was decomposed.
	OriginalTaskPrompt string `json:"original_task_prompt" yaml:"original_task_prompt"`
	// SubtaskList is the ordered list of subtask descriptions.
	SubtaskList []string `json:"subtask_list" yaml:"subtask_list"`
	// IdentifiedConstraints holds every constraint in global order.
	IdentifiedConstraints []ConstraintOccurrence `json:"identified_constraints" yaml:"identified_constraints"`
	// Subtasks are the assembled subtask records.
	Subtasks []Subtask `json:"subtasks" yaml:"subtasks"`
}

// Subtask returns the subtask with the given tag.
func (r *Result) Subtask(tag string) (*Subtask, bool) {
	for i := range r.Subtasks {
		if r.Subtasks[i].Tag == tag {
			return &r.Subtasks[i], true
		}
	}
	return nil, false
}

// Tags returns subtask tags in result order.
func (r *Result) Tags() []string {
	tags := make([]string, len(r.Subtasks))
	for i, st := range r.Subtasks {
		tags[i] = st.Tag
	}
	return tags
}

// CodeValidators returns the number of constraints validated by generated code.
func (r *Result) CodeValidators() int {
	n := 0
	for _, c := range r.IdentifiedConstraints {
		if c.Strategy == StrategyCode {
			n++
		}
	}
	return n
}
