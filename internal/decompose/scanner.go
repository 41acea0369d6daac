package decompose

import (
	"regexp"
	"strings"
)

// templateVarPattern matches {{ name }} placeholders.
var templateVarPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// TemplateVariables returns the placeholder names of a prompt template,
// deduplicated in order of first appearance.
func TemplateVariables(template string) []string {
	matches := templateVarPattern.FindAllStringSubmatch(template, -1)

	seen := make(map[string]bool, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		vars = append(vars, name)
	}
	return vars
}

// ScanVariables splits the placeholders of template into variables supplied
// by the external caller and variables produced by other subtasks.
// Both lists are deduplicated and keep first-appearance order.
func ScanVariables(template string, external []string) (inputs, dependsOn []string) {
	ext := make(map[string]bool, len(external))
	for _, v := range external {
		ext[v] = true
	}

	inputs = []string{}
	dependsOn = []string{}
	for _, name := range TemplateVariables(template) {
		if ext[name] {
			inputs = append(inputs, name)
		} else {
			dependsOn = append(dependsOn, name)
		}
	}
	return inputs, dependsOn
}
