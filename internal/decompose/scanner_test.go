package decompose

import (
	"reflect"
	"testing"
)

func TestScanVariables(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		external  []string
		wantInput []string
		wantDeps  []string
	}{
		{
			name:      "inputs and dependencies",
			template:  "Write {{topic}} for {{audience}} using {{draft}}",
			external:  []string{"topic", "audience"},
			wantInput: []string{"topic", "audience"},
			wantDeps:  []string{"draft"},
		},
		{
			name:      "duplicates keep first appearance",
			template:  "{{draft}} then {{topic}} then {{draft}} and {{topic}}",
			external:  []string{"topic"},
			wantInput: []string{"topic"},
			wantDeps:  []string{"draft"},
		},
		{
			name:      "whitespace inside braces",
			template:  "Use {{ topic }} and {{  OUTLINE}}",
			external:  []string{"topic"},
			wantInput: []string{"topic"},
			wantDeps:  []string{"OUTLINE"},
		},
		{
			name:      "no placeholders",
			template:  "Summarize the text.",
			external:  []string{"topic"},
			wantInput: []string{},
			wantDeps:  []string{},
		},
		{
			name:      "empty braces ignored",
			template:  "Fill {{}} and {{topic}}",
			external:  []string{"topic"},
			wantInput: []string{"topic"},
			wantDeps:  []string{},
		},
		{
			name:      "case sensitive names",
			template:  "{{Topic}} {{topic}}",
			external:  []string{"topic"},
			wantInput: []string{"topic"},
			wantDeps:  []string{"Topic"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs, deps := ScanVariables(tt.template, tt.external)
			if !reflect.DeepEqual(inputs, tt.wantInput) {
				t.Errorf("inputs = %#v, want %#v", inputs, tt.wantInput)
			}
			if !reflect.DeepEqual(deps, tt.wantDeps) {
				t.Errorf("dependsOn = %#v, want %#v", deps, tt.wantDeps)
			}
		})
	}
}

func TestScanVariables_Idempotent(t *testing.T) {
	template := "{{c}} {{a}} {{b}} {{a}} {{d}}"
	external := []string{"a", "d"}

	in1, dep1 := ScanVariables(template, external)
	in2, dep2 := ScanVariables(template, external)
	if !reflect.DeepEqual(in1, in2) || !reflect.DeepEqual(dep1, dep2) {
		t.Errorf("scans differ: %v/%v vs %v/%v", in1, dep1, in2, dep2)
	}

	ext := map[string]bool{"a": true, "d": true}
	for _, v := range in1 {
		if !ext[v] {
			t.Errorf("input %q is not external", v)
		}
	}
	for _, v := range dep1 {
		if ext[v] {
			t.Errorf("dependency %q is external", v)
		}
	}
}

func TestTemplateVariables(t *testing.T) {
	got := TemplateVariables("{{x}}{{y}}{{x}}")
	if want := []string{"x", "y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TemplateVariables() = %v, want %v", got, want)
	}
}
