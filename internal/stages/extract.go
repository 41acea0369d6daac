package stages

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	tagPatternsMu sync.Mutex
	tagPatterns   = make(map[string]*regexp.Regexp)

	// codeFencePattern matches a payload wrapped in a markdown code block.
	codeFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// tagPattern returns the compiled, case-insensitive pattern for <tag>...</tag>.
func tagPattern(tag string) *regexp.Regexp {
	tagPatternsMu.Lock()
	defer tagPatternsMu.Unlock()

	if re, ok := tagPatterns[tag]; ok {
		return re
	}
	q := regexp.QuoteMeta(tag)
	re := regexp.MustCompile(`(?is)<` + q + `>(.+?)</` + q + `>`)
	tagPatterns[tag] = re
	return re
}

// extractTag returns the trimmed content of the first <tag> section.
func extractTag(stage Stage, text, tag string) (string, error) {
	m := tagPattern(tag).FindStringSubmatch(text)
	if m == nil {
		return "", &ExtractionError{Stage: stage, Tag: tag, Err: ErrTagNotFound}
	}
	content := strings.TrimSpace(m[1])
	if content == "" {
		return "", &ExtractionError{Stage: stage, Tag: tag, Err: fmt.Errorf("empty section")}
	}
	return content, nil
}

// extractJSON extracts the <tag> section and decodes it into v.
func extractJSON(stage Stage, text, tag string, v any) error {
	content, err := extractTag(stage, text, tag)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleanJSON(content)), v); err != nil {
		return &ExtractionError{Stage: stage, Tag: tag, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

// cleanJSON strips code fences, // comments and trailing commas.
// Models commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

// bulletMarkers are the list markers removed from the start of an item.
var bulletMarkers = []string{"- ", "* ", "• "}

// bulletLines splits a section into list items, dropping one bullet marker per line and blanks.
func bulletLines(content string) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(trimBullet(strings.TrimSpace(line)))
		line = strings.TrimSpace(trimNumbering(line))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// trimBullet removes a single leading bullet marker. The rest of the line is kept verbatim.
func trimBullet(line string) string {
	for _, m := range bulletMarkers {
		if rest, ok := strings.CutPrefix(line, m); ok {
			return rest
		}
	}
	if line == "-" || line == "*" || line == "•" {
		return ""
	}
	return line
}

// trimNumbering removes a leading "1." or "1)" list marker.
func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return line[i+1:]
	}
	return line
}
