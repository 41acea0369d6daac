package stages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/promptsplit/internal/backend"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// replyCompleter answers every request with a fixed text.
type replyCompleter struct {
	text string
	err  error
	reqs []backend.Request
}

func (r *replyCompleter) Complete(ctx context.Context, req backend.Request) (*backend.Completion, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return nil, r.err
	}
	return &backend.Completion{Text: r.text}, nil
}

func TestGenerate_BackendErrorIsGenerationError(t *testing.T) {
	s := &replyCompleter{err: errors.New("connection refused")}

	_, err := ValidationDecision(context.Background(), s, "no uppercase")
	if !IsGenerationError(err) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error %q should carry the backend cause", err.Error())
	}
}

func TestGenerate_EmptyTextIsGenerationError(t *testing.T) {
	s := &replyCompleter{text: "   "}

	_, err := ValidationCode(context.Background(), s, "no uppercase")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestGenerate_RequestParameters(t *testing.T) {
	s := &replyCompleter{text: "<validation_function>def f(x): return True</validation_function>"}

	if _, err := ValidationCode(context.Background(), s, "be short"); err != nil {
		t.Fatalf("ValidationCode failed: %v", err)
	}

	req := s.reqs[0]
	if req.Stage != string(StageValidationCode) {
		t.Errorf("Stage = %q", req.Stage)
	}
	if req.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", req.Temperature)
	}
	if req.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", req.MaxTokens)
	}
	if !strings.Contains(req.Prompt, "be short") {
		t.Errorf("Prompt should contain the constraint: %q", req.Prompt)
	}
}

func TestGenerated_WithParser(t *testing.T) {
	s := &replyCompleter{text: "no tags at all"}

	g, err := ValidationCode(context.Background(), s, "x")
	if err != nil {
		t.Fatalf("ValidationCode failed: %v", err)
	}
	if _, err := g.Parse(); !IsExtractionError(err) {
		t.Fatalf("default parser should fail with ExtractionError, got %v", err)
	}

	got, err := g.WithParser(func(text string) (string, error) { return strings.ToUpper(text), nil }).Parse()
	if err != nil {
		t.Fatalf("custom parser failed: %v", err)
	}
	if got != "NO TAGS AT ALL" {
		t.Errorf("got %q", got)
	}
	if g.Text() != "no tags at all" {
		t.Errorf("Text() = %q", g.Text())
	}
}

func TestParseSubtaskList(t *testing.T) {
	text := `Here is the plan.
<subtask_list>
[
  {"subtask": "Outline the essay", "tag": "OUTLINE"},
  {"subtask": "Write the essay", "tag": " ESSAY "},
]
</subtask_list>
All tags are closed and my assignment is finished.`

	items, err := ParseSubtaskList(text)
	if err != nil {
		t.Fatalf("ParseSubtaskList failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[1].Tag != "ESSAY" {
		t.Errorf("Tag = %q, want trimmed ESSAY", items[1].Tag)
	}
}

func TestParseSubtaskList_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing tag", `[{"subtask":"a","tag":"A"}]`},
		{"invalid json", `<subtask_list>[{"subtask":</subtask_list>`},
		{"empty list", `<subtask_list>[]</subtask_list>`},
		{"duplicate tag", `<subtask_list>[{"subtask":"a","tag":"A"},{"subtask":"b","tag":"A"}]</subtask_list>`},
		{"blank tag", `<subtask_list>[{"subtask":"a","tag":""}]</subtask_list>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubtaskList(tt.text)
			if !IsExtractionError(err) {
				t.Errorf("expected ExtractionError, got %v", err)
			}
		})
	}
}

func TestParseConstraints(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"bullets",
			"<constraints_and_requirements>\n- no uppercase\n- max 3 bullets\n- no uppercase\n</constraints_and_requirements>",
			[]string{"no uppercase", "max 3 bullets", "no uppercase"},
		},
		{
			"numbered",
			"<CONSTRAINTS_AND_REQUIREMENTS>\n1. be brief\n2) cite sources\n</CONSTRAINTS_AND_REQUIREMENTS>",
			[]string{"be brief", "cite sources"},
		},
		{
			"not applicable",
			"<constraints_and_requirements>N/A</constraints_and_requirements>",
			[]string{},
		},
		{
			"markdown emphasis survives",
			"<constraints_and_requirements>\n- **Bold** every heading\n- *Never* use emojis\n</constraints_and_requirements>",
			[]string{"**Bold** every heading", "*Never* use emojis"},
		},
		{
			"only one marker removed",
			"<constraints_and_requirements>\n- -1 must be written as minus one\n* * keep the inner star\n•  • dot list\n</constraints_and_requirements>",
			[]string{"-1 must be written as minus one", "* keep the inner star", "• dot list"},
		},
		{
			"unbulleted lines kept verbatim",
			"<constraints_and_requirements>\n*emphasis* first\n-\n--flag must be documented\n</constraints_and_requirements>",
			[]string{"*emphasis* first", "--flag must be documented"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConstraints(tt.text)
			if err != nil {
				t.Fatalf("ParseConstraints failed: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseValidationDecision(t *testing.T) {
	tests := []struct {
		text    string
		want    models.ValidationStrategy
		wantErr bool
	}{
		{"<validation_decision>code</validation_decision>", models.StrategyCode, false},
		{"<validation_decision> LLM </validation_decision>", models.StrategyLLM, false},
		{"<validation_decision>\"code\".</validation_decision>", models.StrategyCode, false},
		{"<validation_decision>regex</validation_decision>", "", true},
		{"code", "", true},
	}

	for _, tt := range tests {
		got, err := ParseValidationDecision(tt.text)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseValidationDecision(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			continue
		}
		if err != nil && !IsExtractionError(err) {
			t.Errorf("expected ExtractionError, got %T", err)
		}
		if got != tt.want {
			t.Errorf("ParseValidationDecision(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParseValidationCode(t *testing.T) {
	text := "<validation_function>\ndef validate_input(input: str) -> bool:\n    return input.islower()\n</validation_function>"

	got, err := ParseValidationCode(text)
	if err != nil {
		t.Fatalf("ParseValidationCode failed: %v", err)
	}
	if !strings.HasPrefix(got, "def validate_input") {
		t.Errorf("got %q", got)
	}
}

func TestParseValidationReport(t *testing.T) {
	text := "<validation_report>```json\n{\"is_valid\": null, \"error_type\": \"casing\", \"error_trackback\": null, \"failure_cause\": \"uppercase found\", \"failure_trackback\": null}\n```</validation_report>"

	report, err := ParseValidationReport(text)
	if err != nil {
		t.Fatalf("ParseValidationReport failed: %v", err)
	}
	if report.IsValid != nil {
		t.Errorf("IsValid = %v, want nil (unknown)", *report.IsValid)
	}
	if report.ErrorType == nil || *report.ErrorType != "casing" {
		t.Errorf("ErrorType = %v", report.ErrorType)
	}
}

func TestParseValidationReport_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing tag", `{"is_valid": true}`},
		{"malformed json", `<validation_report>{"is_valid": tru</validation_report>`},
		{"not an object", `<validation_report>[1, 2]</validation_report>`},
		{"wrong field type", `<validation_report>{"is_valid": "yes"}</validation_report>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseValidationReport(tt.text); !IsExtractionError(err) {
				t.Errorf("expected ExtractionError, got %v", err)
			}
		})
	}
}

func TestSubtaskPromptsParser(t *testing.T) {
	subtasks := []SubtaskItem{
		{Description: "Outline", Tag: "OUTLINE"},
		{Description: "Write", Tag: "ESSAY"},
	}
	parse := SubtaskPromptsParser(subtasks)

	text := `<subtask_prompt_templates>[
		{"tag": "ESSAY", "prompt_template": "Write about {{topic}} from {{OUTLINE}}"},
		{"tag": "OUTLINE", "prompt_template": "Outline {{topic}}"}
	]</subtask_prompt_templates>`

	got, err := parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got[0].Tag != "OUTLINE" || got[1].Tag != "ESSAY" {
		t.Errorf("output should follow subtask order, got %s, %s", got[0].Tag, got[1].Tag)
	}
	if got[1].PromptTemplate != "Write about {{topic}} from {{OUTLINE}}" {
		t.Errorf("PromptTemplate = %q", got[1].PromptTemplate)
	}

	missing := `<subtask_prompt_templates>[{"tag": "OUTLINE", "prompt_template": "x"}]</subtask_prompt_templates>`
	if _, err := parse(missing); !IsExtractionError(err) {
		t.Errorf("missing template: expected ExtractionError, got %v", err)
	}
}

func TestConstraintAssignParser(t *testing.T) {
	prompts := []SubtaskPrompt{
		{SubtaskItem: SubtaskItem{Tag: "A"}},
		{SubtaskItem: SubtaskItem{Tag: "B"}},
		{SubtaskItem: SubtaskItem{Tag: "C"}},
	}
	constraints := []string{"no uppercase", "max 3 bullets"}
	parse := ConstraintAssignParser(prompts, constraints)

	got, err := parse(`<assigned_constraints>{"A": [1, 2, 1], "B": [1]}</assigned_constraints>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if strings.Join(got[0].Constraints, "|") != "no uppercase|max 3 bullets" {
		t.Errorf("A constraints = %q", got[0].Constraints)
	}
	if strings.Join(got[1].Constraints, "|") != "no uppercase" {
		t.Errorf("B constraints = %q", got[1].Constraints)
	}
	if got[2].Constraints == nil || len(got[2].Constraints) != 0 {
		t.Errorf("C should have an empty, non-nil constraint list, got %#v", got[2].Constraints)
	}
}

func TestConstraintAssignParser_Errors(t *testing.T) {
	prompts := []SubtaskPrompt{{SubtaskItem: SubtaskItem{Tag: "A"}}}
	parse := ConstraintAssignParser(prompts, []string{"one"})

	tests := []struct {
		name string
		text string
	}{
		{"out of range", `<assigned_constraints>{"A": [2]}</assigned_constraints>`},
		{"zero index", `<assigned_constraints>{"A": [0]}</assigned_constraints>`},
		{"unknown subtask", `<assigned_constraints>{"Z": [1]}</assigned_constraints>`},
		{"strings instead of numbers", `<assigned_constraints>{"A": ["one"]}</assigned_constraints>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.text); !IsExtractionError(err) {
				t.Errorf("expected ExtractionError, got %v", err)
			}
		})
	}
}

func TestParseGeneralInstructions(t *testing.T) {
	got, err := ParseGeneralInstructions("<general_instructions>\n- Be concise\n</general_instructions>")
	if err != nil {
		t.Fatalf("ParseGeneralInstructions failed: %v", err)
	}
	if got != "- Be concise" {
		t.Errorf("got %q", got)
	}

	got, err = ParseGeneralInstructions("<general_instructions>N/A</general_instructions>")
	if err != nil || got != "" {
		t.Errorf("N/A should yield empty string, got %q, %v", got, err)
	}
}

func TestCleanJSON(t *testing.T) {
	raw := "{\n  \"url\": \"http://example.com\", // comment\n  \"list\": [1, 2,],\n}"
	got := cleanJSON(raw)

	if strings.Contains(got, "// comment") {
		t.Errorf("comment not stripped: %q", got)
	}
	if !strings.Contains(got, "http://example.com") {
		t.Errorf("URL inside string must survive: %q", got)
	}
	if strings.Contains(got, ",]") || strings.Contains(got, ",\n}") {
		t.Errorf("trailing commas not removed: %q", got)
	}
}
