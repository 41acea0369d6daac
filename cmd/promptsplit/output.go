package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// encodeResult writes result to w in the given format.
func encodeResult(w io.Writer, result *models.Result, format string) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(result)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// writeResult writes result to path, or to stdout when path is empty or "-".
func writeResult(stdout io.Writer, path string, result *models.Result, format string) error {
	if path == "" || path == "-" {
		return encodeResult(stdout, result, format)
	}

	var buf bytes.Buffer
	if err := encodeResult(&buf, result, format); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// decodeResult parses a saved result. YAML is used for .yaml/.yml paths,
// JSON otherwise.
func decodeResult(path string, data []byte) (*models.Result, error) {
	var result models.Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("parse yaml result: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("parse json result: %w", err)
		}
	}
	return &result, nil
}

// formatForPath infers the output format from a file extension.
func formatForPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".json":
		return formatJSON
	default:
		return fallback
	}
}
