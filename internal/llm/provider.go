package llm

import (
	"context"
	"time"
)

// Provider defines the interface for text-generation services
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends one completion request and returns the first candidate.
	// Implementations never retry; callers decide what a failure means.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest contains the input for a single completion
type GenerateRequest struct {
	// SystemPrompt carries the instructions (may be empty)
	SystemPrompt string

	// Prompt is the user content
	Prompt string

	// Model overrides the provider's configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature is sent verbatim, including 0
	Temperature float64

	// JSON asks the service to emit a single JSON object and nothing else
	JSON bool
}

// GenerateResponse contains the first completion returned by the service
type GenerateResponse struct {
	// Text is the raw completion text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption when the service reports it
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (proxies, Ollama, tests)
	BaseURL string

	// Timeout is the HTTP client ceiling; per-call deadlines come from ctx
	Timeout time.Duration

	// MaxTokens is used when a request does not set one
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Model:     "gemini-2.0-flash",
		Timeout:   60 * time.Second,
		MaxTokens: 2048,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2048
}

func (c Config) model(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
