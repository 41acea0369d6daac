// Package backend resolves a backend selection into one text-completion session.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Kind is the closed set of supported backends.
type Kind string

const (
	// KindOllama is a local inference server speaking the Ollama chat API.
	KindOllama Kind = "ollama"
	// KindOpenAI is a hosted OpenAI-compatible chat completions API.
	KindOpenAI Kind = "openai"
	// KindAnthropic is the hosted Anthropic Messages API, direct or via AWS Bedrock.
	KindAnthropic Kind = "anthropic"
)

// DefaultModel is used when no model identifier is configured.
const DefaultModel = "mistral-small3.2:latest"

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 300 * time.Second

// Kinds lists every supported backend kind.
func Kinds() []Kind {
	return []Kind{KindOllama, KindOpenAI, KindAnthropic}
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown backend %q (expected one of ollama, openai, anthropic)", s)
	}
	return k, nil
}

// Valid returns true if the kind is a known value.
func (k Kind) Valid() bool {
	switch k {
	case KindOllama, KindOpenAI, KindAnthropic:
		return true
	default:
		return false
	}
}

// Config selects and parameterizes a backend.
type Config struct {
	// Kind selects the backend implementation.
	Kind Kind
	// Model is the model identifier passed to the backend.
	Model string
	// Timeout bounds a single completion request.
	Timeout time.Duration
	// Endpoint is the base URL of the backend.
	Endpoint string
	// APIKey is the credential for hosted backends.
	APIKey string
	// ContextWindow is the context size requested from local servers (0 = server default).
	ContextWindow int
	// UseBedrock routes the anthropic backend through AWS Bedrock.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional shared config profile for Bedrock.
	AWSProfile string
}

// PreconditionError reports required configuration that is missing.
type PreconditionError struct {
	Kind  Kind
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("backend %q requires %q to be set", e.Kind, e.Field)
}

// Validate checks that the configuration carries everything its kind needs.
// It never contacts the backend.
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown backend %q", c.Kind)
	}

	switch c.Kind {
	case KindOpenAI:
		if c.Endpoint == "" {
			return &PreconditionError{Kind: c.Kind, Field: "endpoint"}
		}
		if c.APIKey == "" {
			return &PreconditionError{Kind: c.Kind, Field: "api_key"}
		}
	case KindAnthropic:
		if !c.UseBedrock && c.APIKey == "" {
			return &PreconditionError{Kind: c.Kind, Field: "api_key"}
		}
	}
	return nil
}

// Request is one completion call.
type Request struct {
	// Stage names the pipeline stage issuing the call (for logging and accounting).
	Stage string
	// System is the system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// Temperature controls randomness; 0 is deterministic.
	Temperature float64
	// MaxTokens limits the response length.
	MaxTokens int
}

// Completion is the text produced for a Request.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Completer turns a prompt into a raw text completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Session is the text-completion capability a decomposition run uses.
// It wraps one resolved backend and records token usage.
type Session struct {
	kind      Kind
	model     string
	completer Completer
	tracker   *TokenTracker
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTracker shares a token tracker across sessions.
func WithTracker(t *TokenTracker) Option {
	return func(s *Session) {
		s.tracker = t
	}
}

// New validates cfg and resolves it into a Session.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var completer Completer
	var err error
	switch cfg.Kind {
	case KindOllama:
		completer = newOllama(cfg)
	case KindOpenAI:
		completer = newOpenAI(cfg)
	case KindAnthropic:
		completer, err = newAnthropic(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.Kind, err)
	}

	return NewSession(cfg.Kind, cfg.Model, completer, opts...), nil
}

// NewSession wraps an existing Completer.
func NewSession(kind Kind, model string, c Completer, opts ...Option) *Session {
	s := &Session{
		kind:      kind,
		model:     model,
		completer: c,
		tracker:   NewTokenTracker(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete runs one completion and records its token usage.
func (s *Session) Complete(ctx context.Context, req Request) (*Completion, error) {
	start := time.Now()
	out, err := s.completer.Complete(ctx, req)
	if err != nil {
		s.logger.Debug("completion failed", "backend", s.kind, "stage", req.Stage, "error", err)
		return nil, err
	}
	s.tracker.Add(out.InputTokens, out.OutputTokens)
	s.logger.Debug("completion done",
		"backend", s.kind,
		"stage", req.Stage,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"duration", time.Since(start))
	return out, nil
}

// Kind returns the resolved backend kind.
func (s *Session) Kind() Kind {
	return s.kind
}

// Model returns the configured model identifier.
func (s *Session) Model() string {
	return s.model
}

// Tracker returns the token tracker for this session.
func (s *Session) Tracker() *TokenTracker {
	return s.tracker
}
