package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/verifact/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "gemini", "google":
		return NewGeminiProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider: modelConfig.Provider,
		Model:    modelConfig.Model,
		APIKey:   modelConfig.APIKey,
		BaseURL:  modelConfig.BaseURL,
		Timeout:  modelConfig.Timeout,
	}
}

// APIKeyEnvVars lists the environment variables consulted for a provider, in priority order
func APIKeyEnvVars(provider string) []string {
	switch strings.ToLower(provider) {
	case "gemini", "google":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "anthropic", "claude":
		return []string{"ANTHROPIC_API_KEY"}
	default:
		return nil
	}
}
