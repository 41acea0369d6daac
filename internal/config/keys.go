package config

import (
	"errors"
	"os"
	"strings"

	"github.com/ShayCichocki/promptsplit/internal/backend"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// apiKeyEnv maps a hosted backend to the environment variable holding its key.
var apiKeyEnv = map[backend.Kind]string{
	backend.KindOpenAI:    "OPENAI_API_KEY",
	backend.KindAnthropic: "ANTHROPIC_API_KEY",
}

// APIKeyEnv returns the environment variable consulted for the backend's key, if any.
func APIKeyEnv(kind backend.Kind) string {
	return apiKeyEnv[kind]
}

// GetAPIKey returns the API key for the configured backend.
// It checks in order: config (including PROMPTSPLIT_BACKEND_API_KEY), provider environment variable.
func GetAPIKey(cfg *Config) (string, error) {
	if cfg == nil {
		return "", ErrNoAPIKey
	}

	if key := usableKey(cfg.Backend.APIKey); key != "" {
		return key, nil
	}

	if env := apiKeyEnv[backend.Kind(cfg.Backend.Kind)]; env != "" {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// usableKey expands remaining env references and rejects unresolved ones.
func usableKey(raw string) string {
	if raw == "" {
		return ""
	}
	key := os.ExpandEnv(raw)
	if key == "" || strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg == nil {
		return KeySourceNone
	}
	if usableKey(cfg.Backend.APIKey) != "" {
		return KeySourceConfig
	}
	if env := apiKeyEnv[backend.Kind(cfg.Backend.Kind)]; env != "" && os.Getenv(env) != "" {
		return KeySourceEnv
	}
	return KeySourceNone
}
