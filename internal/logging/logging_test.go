package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" error ", slog.LevelError},
		{"warn", slog.LevelWarn},
		{"loud", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup_Stderr(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, closeFn, err := Setup(Options{Level: slog.LevelWarn, Stderr: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "stage", "subtask_list")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "stage=subtask_list") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestSetup_DebugFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	path := DebugLogPath(t.TempDir())
	var buf bytes.Buffer
	logger, closeFn, err := Setup(Options{Level: slog.LevelError, Stderr: &buf, DebugFile: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Debug("resolving", "constraint", "no uppercase")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "resolving") {
		t.Errorf("debug record missing from file: %q", data)
	}
	if buf.Len() != 0 {
		t.Errorf("stderr should stay empty in debug mode, got %q", buf.String())
	}
	if filepath.Base(filepath.Dir(path)) != "logs" {
		t.Errorf("unexpected debug path %q", path)
	}
}
