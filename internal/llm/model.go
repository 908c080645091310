// Package llm talks to the hosted chat models used for classification,
// routing and resolution drafting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/config"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Request is a single-turn prompt.
type Request struct {
	Prompt      string
	System      string
	Temperature *float32
	MaxTokens   int
	// JSONMode asks the provider to constrain output to a JSON object.
	JSONMode bool
}

// Model completes prompts.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm/%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Temperature is a helper for Request.Temperature.
func Temperature(v float32) *float32 {
	return &v
}

// NewModel builds the provider selected by cfg.Provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "groq", "openai", "openai-compatible":
		if cfg.APIKey == "" && provider != "openai-compatible" {
			return nil, fmt.Errorf("llm: %s requires an API key", provider)
		}
		return NewOpenAICompatible(OpenAIOptions{
			Provider: provider,
			BaseURL:  defaultBaseURL(provider, cfg.BaseURL),
			APIKey:   cfg.APIKey,
			Model:    defaultModel(provider, cfg.Model),
			Timeout:  cfg.Timeout(),
		}), nil
	case "gemini", "genai":
		return NewGemini(ctx, cfg.APIKey, defaultModel("gemini", cfg.Model), cfg.Timeout())
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func defaultBaseURL(provider, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "openai-compatible":
		return "http://localhost:11434/v1"
	default:
		return "https://api.groq.com/openai/v1"
	}
}

func defaultModel(provider, configured string) string {
	if configured != "" {
		return configured
	}
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "llama-3.1-8b-instant"
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
