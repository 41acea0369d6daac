package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ShayCichocki/promptsplit/internal/config"
)

func newOverrideFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addOverrideFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return f
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.Default()
	flags := newOverrideFlags(t,
		"--backend", "openai",
		"--model", "gpt-4o",
		"--endpoint", "http://localhost:8000/v1",
		"--timeout", "90s",
		"--concurrency", "4",
		"--permissive",
		"--normalize",
		"--format", "yaml",
	)

	if err := applyFlagOverrides(flags, cfg); err != nil {
		t.Fatalf("applyFlagOverrides failed: %v", err)
	}

	if cfg.Backend.Kind != "openai" || cfg.Backend.Model != "gpt-4o" {
		t.Errorf("backend = %s/%s", cfg.Backend.Kind, cfg.Backend.Model)
	}
	if cfg.Backend.Endpoint != "http://localhost:8000/v1" {
		t.Errorf("endpoint = %q", cfg.Backend.Endpoint)
	}
	if cfg.Backend.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Backend.Timeout)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("concurrency = %d", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.ValidateGraph {
		t.Error("--permissive should disable graph validation")
	}
	if !cfg.Pipeline.NormalizeConstraints {
		t.Error("--normalize should enable normalization")
	}
	if cfg.Output.Format != "yaml" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestApplyFlagOverrides_UnsetFlagsKeepConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Model = "from-config"
	cfg.Pipeline.Concurrency = 3

	if err := applyFlagOverrides(newOverrideFlags(t), cfg); err != nil {
		t.Fatalf("applyFlagOverrides failed: %v", err)
	}
	if cfg.Backend.Model != "from-config" || cfg.Pipeline.Concurrency != 3 {
		t.Errorf("unset flags changed config: %+v", cfg)
	}
	if !cfg.Pipeline.ValidateGraph {
		t.Error("graph validation should stay on by default")
	}
}

func TestApplyFlagOverrides_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"--backend", "carrier-pigeon"}},
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"unknown format", []string{"--format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := applyFlagOverrides(newOverrideFlags(t, tt.args...), config.Default()); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestReadPrompt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "task.txt")
	if err := os.WriteFile(file, []byte("  Write about {{topic}}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		file    string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "argument", args: []string{"Summarize {{doc}}"}, want: "Summarize {{doc}}"},
		{name: "file wins over argument", args: []string{"ignored"}, file: file, want: "Write about {{topic}}"},
		{name: "dash reads stdin", args: []string{"-"}, stdin: "from stdin\n", want: "from stdin"},
		{name: "no args reads stdin", stdin: "piped", want: "piped"},
		{name: "empty", args: []string{"   "}, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope.txt"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPrompt(tt.args, tt.file, strings.NewReader(tt.stdin))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readPrompt failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("readPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}
