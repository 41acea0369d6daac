package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/promptsplit/pkg/models"
)

func sampleResult() *models.Result {
	fn := "def validate_input(s):\n    return s == s.lower()"
	occ := models.ConstraintOccurrence{
		Constraint:    "no uppercase",
		Strategy:      models.StrategyCode,
		ValidatorFn:   &fn,
		ValidatorName: "val_fn_1",
		Report:        &models.ReportSchema{},
	}
	return &models.Result{
		OriginalTaskPrompt:    "Write about {{topic}}",
		SubtaskList:           []string{"Research", "Draft"},
		IdentifiedConstraints: []models.ConstraintOccurrence{occ},
		Subtasks: []models.Subtask{
			{Description: "Research", Tag: "RESEARCH", PromptTemplate: "Research {{topic}}",
				InputVarsRequired: []string{"topic"}, DependsOn: []string{}},
			{Description: "Draft", Tag: "DRAFT", PromptTemplate: "Draft from {{RESEARCH}}",
				Constraints: []models.ConstraintOccurrence{occ}, InputVarsRequired: []string{"RESEARCH"},
				DependsOn: []string{"RESEARCH"}},
		},
	}
}

func TestEncodeResult_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"json", `"val_fn_name": "val_fn_1"`},
		{"", `"original_task_prompt": "Write about {{topic}}"`},
		{"yaml", "val_fn_name: val_fn_1"},
		{"YML", "depends_on:"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encodeResult(&buf, sampleResult(), tt.format); err != nil {
				t.Fatalf("encodeResult failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestEncodeResult_UnknownFormat(t *testing.T) {
	if err := encodeResult(&bytes.Buffer{}, sampleResult(), "toml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteAndDecodeResult(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"out/plan.json", "plan.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := writeResult(nil, path, sampleResult(), formatForPath(path, formatJSON)); err != nil {
				t.Fatalf("writeResult failed: %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			got, err := decodeResult(path, data)
			if err != nil {
				t.Fatalf("decodeResult failed: %v", err)
			}
			if len(got.Subtasks) != 2 || got.Subtasks[1].DependsOn[0] != "RESEARCH" {
				t.Errorf("subtasks not restored: %+v", got.Subtasks)
			}
			occ := got.IdentifiedConstraints[0]
			if occ.ValidatorFn == nil || !strings.Contains(*occ.ValidatorFn, "validate_input") {
				t.Errorf("validator not restored: %+v", occ)
			}
		})
	}
}

func TestWriteResult_Stdout(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResult(&buf, "-", sampleResult(), formatJSON); err != nil {
		t.Fatalf("writeResult failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON on stdout, got %q", buf.String())
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"plan.yaml", formatYAML},
		{"plan.YML", formatYAML},
		{"plan.json", formatJSON},
		{"plan.txt", "fallback"},
	}
	for _, tt := range tests {
		if got := formatForPath(tt.path, "fallback"); got != tt.want {
			t.Errorf("formatForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"multi\nline   prompt", 20, "multi line prompt"},
		{"abcdefghijkl", 8, "abcde..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
