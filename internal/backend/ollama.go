package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// defaultOllamaURL is where a local Ollama server listens by default.
const defaultOllamaURL = "http://localhost:11434"

// ollamaCompleter implements the native Ollama chat API.
type ollamaCompleter struct {
	url           string
	model         string
	contextWindow int
	httpClient    *http.Client
}

func newOllama(cfg Config) *ollamaCompleter {
	base := cfg.Endpoint
	if base == "" {
		base = defaultOllamaURL
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasSuffix(base, "/api/chat") {
		base += "/api/chat"
	}

	return &ollamaCompleter{
		url:           base,
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool  `json:"done"`
	PromptEvalCount int64 `json:"prompt_eval_count"`
	EvalCount       int64 `json:"eval_count"`
}

// Complete sends one non-streaming chat request.
func (o *ollamaCompleter) Complete(ctx context.Context, req Request) (*Completion, error) {
	body := ollamaRequest{
		Model:    o.model,
		Messages: buildMessages(req),
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumCtx:      o.contextWindow,
			NumPredict:  req.MaxTokens,
		},
	}

	raw, err := postJSON(ctx, o.httpClient, o.url, nil, body)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	return &Completion{
		Text:         resp.Message.Content,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}
