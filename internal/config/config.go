// Package config handles configuration loading and management for promptsplit.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/promptsplit/internal/backend"
)

// ProjectConfigName is the file searched for in the working directory and its parents.
const ProjectConfigName = ".promptsplit.yaml"

// EnvPrefix prefixes environment variable overrides, e.g. PROMPTSPLIT_BACKEND_KIND.
const EnvPrefix = "PROMPTSPLIT"

// Config holds all configuration for promptsplit.
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	History  HistoryConfig  `mapstructure:"history"`
	Output   OutputConfig   `mapstructure:"output"`
}

// BackendConfig selects the text-generation backend.
type BackendConfig struct {
	Kind          string        `mapstructure:"kind"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	AWSRegion     string        `mapstructure:"aws_region"`
	AWSProfile    string        `mapstructure:"aws_profile"`
	UseBedrock    bool          `mapstructure:"use_bedrock"`
	ContextWindow int           `mapstructure:"context_window"`
}

// PipelineConfig tunes the decomposition pipeline.
type PipelineConfig struct {
	// Concurrency bounds parallel constraint resolution and subtask assembly.
	Concurrency int `mapstructure:"concurrency"`
	// ValidateGraph rejects unresolved or cyclic subtask dependencies.
	ValidateGraph bool `mapstructure:"validate_graph"`
	// NormalizeConstraints keys constraints by trimmed, case-folded text.
	NormalizeConstraints bool `mapstructure:"normalize_constraints"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	// Format is json or yaml.
	Format string `mapstructure:"format"`
}

// keyKind describes how a key's string value is parsed.
type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindDuration
)

// keys lists every supported key with its value kind.
var keys = map[string]keyKind{
	"backend.kind":                   kindString,
	"backend.model":                  kindString,
	"backend.timeout":                kindDuration,
	"backend.endpoint":               kindString,
	"backend.api_key":                kindString,
	"backend.aws_region":             kindString,
	"backend.aws_profile":            kindString,
	"backend.use_bedrock":            kindBool,
	"backend.context_window":         kindInt,
	"pipeline.concurrency":           kindInt,
	"pipeline.validate_graph":        kindBool,
	"pipeline.normalize_constraints": kindBool,
	"history.enabled":                kindBool,
	"history.path":                   kindString,
	"output.format":                  kindString,
}

// Keys returns every supported configuration key, sorted.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PROMPTSPLIT_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
// 2. Project config (.promptsplit.yaml in current directory or parent)
// 3. User config (~/.config/promptsplit/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return loadFrom(getUserConfigDir(), findProjectConfig(cwd))
}

// loadFrom loads the user config in userDir merged with projectConfig (may be empty).
func loadFrom(userDir, projectConfig string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Backend.APIKey = expandEnv(cfg.Backend.APIKey)
	cfg.Backend.Endpoint = expandEnv(cfg.Backend.Endpoint)
	cfg.History.Path = expandEnv(cfg.History.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := backend.ParseKind(c.Backend.Kind); err != nil {
		return fmt.Errorf("backend.kind: %w", err)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("output.format must be json or yaml, got %q", c.Output.Format)
	}
	return nil
}

// BackendConfig converts the backend section into a backend.Config.
// The API key falls back to the provider's environment variable.
func (c *Config) BackendConfig() (backend.Config, error) {
	kind, err := backend.ParseKind(c.Backend.Kind)
	if err != nil {
		return backend.Config{}, err
	}

	key, _ := GetAPIKey(c)
	return backend.Config{
		Kind:          kind,
		Model:         c.Backend.Model,
		Timeout:       c.Backend.Timeout,
		Endpoint:      c.Backend.Endpoint,
		APIKey:        key,
		ContextWindow: c.Backend.ContextWindow,
		UseBedrock:    c.Backend.UseBedrock,
		AWSRegion:     c.Backend.AWSRegion,
		AWSProfile:    c.Backend.AWSProfile,
	}, nil
}

// Get returns the string form of a key's value.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "backend.kind":
		return c.Backend.Kind, nil
	case "backend.model":
		return c.Backend.Model, nil
	case "backend.timeout":
		return c.Backend.Timeout.String(), nil
	case "backend.endpoint":
		return c.Backend.Endpoint, nil
	case "backend.api_key":
		return MaskAPIKey(c.Backend.APIKey), nil
	case "backend.aws_region":
		return c.Backend.AWSRegion, nil
	case "backend.aws_profile":
		return c.Backend.AWSProfile, nil
	case "backend.use_bedrock":
		return strconv.FormatBool(c.Backend.UseBedrock), nil
	case "backend.context_window":
		return strconv.Itoa(c.Backend.ContextWindow), nil
	case "pipeline.concurrency":
		return strconv.Itoa(c.Pipeline.Concurrency), nil
	case "pipeline.validate_graph":
		return strconv.FormatBool(c.Pipeline.ValidateGraph), nil
	case "pipeline.normalize_constraints":
		return strconv.FormatBool(c.Pipeline.NormalizeConstraints), nil
	case "history.enabled":
		return strconv.FormatBool(c.History.Enabled), nil
	case "history.path":
		return c.History.Path, nil
	case "output.format":
		return c.Output.Format, nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Set writes one key to the user config file, creating it if needed.
func Set(key, value string) error {
	return setIn(getUserConfigDir(), key, value)
}

func setIn(dir, key, value string) error {
	kind, ok := keys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}

	typed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if key == "backend.kind" {
		if _, err := backend.ParseKind(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}

	v.Set(key, typed)
	return v.WriteConfig()
}

func parseValue(kind keyKind, value string) (any, error) {
	switch kind {
	case kindBool:
		return strconv.ParseBool(value)
	case kindInt:
		return strconv.Atoi(value)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(cwd)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.kind", string(backend.KindOllama))
	v.SetDefault("backend.model", backend.DefaultModel)
	v.SetDefault("backend.timeout", backend.DefaultTimeout.String())
	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.aws_region", "")
	v.SetDefault("backend.aws_profile", "")
	v.SetDefault("backend.use_bedrock", false)
	v.SetDefault("backend.context_window", 16384)

	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.validate_graph", true)
	v.SetDefault("pipeline.normalize_constraints", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("output.format", "json")
}

// getUserConfigDir returns the XDG config directory for promptsplit.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "promptsplit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "promptsplit")
	}
	return filepath.Join(home, ".config", "promptsplit")
}

// findProjectConfig searches for .promptsplit.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:          string(backend.KindOllama),
			Model:         backend.DefaultModel,
			Timeout:       backend.DefaultTimeout,
			ContextWindow: 16384,
		},
		Pipeline: PipelineConfig{
			Concurrency:   1,
			ValidateGraph: true,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}
