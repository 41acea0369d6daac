package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/promptsplit/internal/backend"
)

// SubtaskItem is one entry of the subtask list.
type SubtaskItem struct {
	Description string `json:"subtask"`
	Tag         string `json:"tag"`
}

// SubtaskPrompt is a subtask with its prompt template.
type SubtaskPrompt struct {
	SubtaskItem
	PromptTemplate string
}

// SubtaskPromptConstraints is a subtask prompt with its assigned constraints.
type SubtaskPromptConstraints struct {
	SubtaskPrompt
	Constraints []string
}

const (
	tagSubtaskList         = "subtask_list"
	tagSubtaskPrompts      = "subtask_prompt_templates"
	tagAssignedConstraints = "assigned_constraints"
	tagGeneralInstructions = "general_instructions"
)

// SubtaskList splits the task prompt into ordered subtasks.
func SubtaskList(ctx context.Context, s backend.Completer, taskPrompt string) (*Generated[[]SubtaskItem], error) {
	return generate(ctx, s, call{
		stage:     StageSubtaskList,
		system:    subtaskListSystem,
		prompt:    fmt.Sprintf(subtaskListUser, taskPrompt),
		maxTokens: 8192,
	}, ParseSubtaskList)
}

// ParseSubtaskList is the default parser of the subtask list stage.
// Tags must be present and unique.
func ParseSubtaskList(text string) ([]SubtaskItem, error) {
	var items []SubtaskItem
	if err := extractJSON(StageSubtaskList, text, tagSubtaskList, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ExtractionError{Stage: StageSubtaskList, Tag: tagSubtaskList, Err: fmt.Errorf("empty subtask list")}
	}

	seen := make(map[string]bool, len(items))
	for i := range items {
		items[i].Description = strings.TrimSpace(items[i].Description)
		items[i].Tag = strings.TrimSpace(items[i].Tag)
		if items[i].Tag == "" {
			return nil, &ExtractionError{Stage: StageSubtaskList, Tag: tagSubtaskList, Err: fmt.Errorf("subtask %d has no tag", i+1)}
		}
		if seen[items[i].Tag] {
			return nil, &ExtractionError{Stage: StageSubtaskList, Tag: tagSubtaskList, Err: fmt.Errorf("duplicate tag %q", items[i].Tag)}
		}
		seen[items[i].Tag] = true
	}
	return items, nil
}

// SubtaskPrompts generates one prompt template per subtask.
func SubtaskPrompts(ctx context.Context, s backend.Completer, taskPrompt string, inputVars []string, subtasks []SubtaskItem) (*Generated[[]SubtaskPrompt], error) {
	vars := "(none)"
	if len(inputVars) > 0 {
		vars = "- " + strings.Join(inputVars, "\n- ")
	}

	var list strings.Builder
	for _, st := range subtasks {
		fmt.Fprintf(&list, "- %s: %s\n", st.Tag, st.Description)
	}

	return generate(ctx, s, call{
		stage:     StageSubtaskPrompts,
		system:    subtaskPromptsSystem,
		prompt:    fmt.Sprintf(subtaskPromptsUser, taskPrompt, vars, strings.TrimRight(list.String(), "\n")),
		maxTokens: 8192,
	}, SubtaskPromptsParser(subtasks))
}

// SubtaskPromptsParser returns the default parser of the subtask prompt stage.
// Templates are matched to subtasks by tag; every subtask needs exactly one.
func SubtaskPromptsParser(subtasks []SubtaskItem) Parser[[]SubtaskPrompt] {
	return func(text string) ([]SubtaskPrompt, error) {
		var raw []struct {
			Tag            string `json:"tag"`
			PromptTemplate string `json:"prompt_template"`
		}
		if err := extractJSON(StageSubtaskPrompts, text, tagSubtaskPrompts, &raw); err != nil {
			return nil, err
		}

		templates := make(map[string]string, len(raw))
		for _, r := range raw {
			tag := strings.TrimSpace(r.Tag)
			if _, dup := templates[tag]; dup {
				return nil, &ExtractionError{Stage: StageSubtaskPrompts, Tag: tagSubtaskPrompts, Err: fmt.Errorf("duplicate template for %q", tag)}
			}
			templates[tag] = strings.TrimSpace(r.PromptTemplate)
		}

		out := make([]SubtaskPrompt, len(subtasks))
		for i, st := range subtasks {
			tpl, ok := templates[st.Tag]
			if !ok || tpl == "" {
				return nil, &ExtractionError{Stage: StageSubtaskPrompts, Tag: tagSubtaskPrompts, Err: fmt.Errorf("no template for subtask %q", st.Tag)}
			}
			out[i] = SubtaskPrompt{SubtaskItem: st, PromptTemplate: tpl}
		}
		return out, nil
	}
}

// ConstraintAssign assigns a subset of the global constraints to each subtask.
func ConstraintAssign(ctx context.Context, s backend.Completer, prompts []SubtaskPrompt, constraints []string) (*Generated[[]SubtaskPromptConstraints], error) {
	var cons strings.Builder
	for i, c := range constraints {
		fmt.Fprintf(&cons, "%d. %s\n", i+1, c)
	}
	if len(constraints) == 0 {
		cons.WriteString("(none)\n")
	}

	var subs strings.Builder
	for _, p := range prompts {
		fmt.Fprintf(&subs, "[%s] %s\nPrompt template:\n%s\n\n", p.Tag, p.Description, p.PromptTemplate)
	}

	return generate(ctx, s, call{
		stage:     StageConstraintAssign,
		system:    constraintAssignSystem,
		prompt:    fmt.Sprintf(constraintAssignUser, strings.TrimRight(cons.String(), "\n"), strings.TrimRight(subs.String(), "\n")),
		maxTokens: 8192,
	}, ConstraintAssignParser(prompts, constraints))
}

// ConstraintAssignParser returns the default parser of the constraint assignment stage.
// Constraint numbers are 1-based positions in constraints. Subtasks absent
// from the answer get no constraints.
func ConstraintAssignParser(prompts []SubtaskPrompt, constraints []string) Parser[[]SubtaskPromptConstraints] {
	return func(text string) ([]SubtaskPromptConstraints, error) {
		var raw map[string][]int
		if err := extractJSON(StageConstraintAssign, text, tagAssignedConstraints, &raw); err != nil {
			return nil, err
		}

		known := make(map[string]bool, len(prompts))
		for _, p := range prompts {
			known[p.Tag] = true
		}
		for tag := range raw {
			if !known[strings.TrimSpace(tag)] {
				return nil, &ExtractionError{Stage: StageConstraintAssign, Tag: tagAssignedConstraints, Err: fmt.Errorf("unknown subtask %q", tag)}
			}
		}

		out := make([]SubtaskPromptConstraints, len(prompts))
		for i, p := range prompts {
			out[i] = SubtaskPromptConstraints{SubtaskPrompt: p, Constraints: []string{}}
			seen := make(map[int]bool)
			for _, n := range lookupTag(raw, p.Tag) {
				if n < 1 || n > len(constraints) {
					return nil, &ExtractionError{Stage: StageConstraintAssign, Tag: tagAssignedConstraints, Err: fmt.Errorf("subtask %q: constraint number %d out of range", p.Tag, n)}
				}
				if seen[n] {
					continue
				}
				seen[n] = true
				out[i].Constraints = append(out[i].Constraints, constraints[n-1])
			}
		}
		return out, nil
	}
}

// lookupTag finds a tag in the answer, tolerating surrounding whitespace in keys.
func lookupTag(raw map[string][]int, tag string) []int {
	if v, ok := raw[tag]; ok {
		return v
	}
	for k, v := range raw {
		if strings.TrimSpace(k) == tag {
			return v
		}
	}
	return nil
}

// GeneralInstructions derives general instructions from a prompt template.
func GeneralInstructions(ctx context.Context, s backend.Completer, promptTemplate string) (*Generated[string], error) {
	return generate(ctx, s, call{
		stage:     StageGeneralInstructions,
		system:    generalInstructionsSystem,
		prompt:    fmt.Sprintf(generalInstructionsUser, promptTemplate),
		maxTokens: 8192,
	}, ParseGeneralInstructions)
}

// ParseGeneralInstructions is the default parser of the general instructions stage.
// An N/A answer yields an empty string.
func ParseGeneralInstructions(text string) (string, error) {
	content, err := extractTag(StageGeneralInstructions, text, tagGeneralInstructions)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(content, "N/A") {
		return "", nil
	}
	return content, nil
}
