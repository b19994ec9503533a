// Package llm provides a transport-agnostic completion client for any
// OpenAI-compatible chat server.
//
// It decouples model access from the engine's discovery and extraction
// logic. A missing endpoint or API key degrades to a Noop client that
// reports itself unavailable, so the engine runs without AI fallback
// rather than crashing.
//
// Usage:
//
//	client := llm.New(llm.Config{
//	    Endpoint: "https://api.openai.com",
//	    APIKey:   os.Getenv("DRIFT_LLM_KEY"),
//	    Model:    "gpt-4o-mini",
//	})
//	out, err := client.Complete(ctx, llm.Request{System: "...", Prompt: "..."})
package llm

import (
	"context"
	"log/slog"
	"time"
)

// Request is one completion call.
type Request struct {
	System    string // optional system message
	Prompt    string // user message
	MaxTokens int    // 0 = config default
}

// Response is the model's reply.
type Response struct {
	Text  string // assistant message content
	Model string // model that answered
}

// Client completes prompts.
type Client interface {
	// Complete sends one request and returns the model's text. The call
	// carries its own bounded timeout and is never retried here.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Available reports whether the client can reach a model at all.
	Available() bool
}

// Config configures the completion client.
type Config struct {
	// Endpoint is the base URL of the chat server. Empty = Noop client.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey is sent as a Bearer token. Empty = Noop client.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the model name sent in the request.
	Model string `json:"model" yaml:"model"`

	// MaxTokens caps the completion length. Default: 1024.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates a Client from config. If Endpoint or APIKey is empty, a
// Noop client is returned.
func New(cfg Config) Client {
	cfg.defaults()
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		cfg.Logger.Info("llm: no endpoint or key configured, AI fallback disabled")
		return Noop{}
	}
	return newOpenAIClient(cfg)
}

// Noop is the degraded client used when no model is configured.
type Noop struct{}

// Complete always returns ErrUnavailable.
func (Noop) Complete(ctx context.Context, req Request) (*Response, error) {
	return nil, ErrUnavailable
}

// Available returns false.
func (Noop) Available() bool { return false }
