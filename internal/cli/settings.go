package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
)

// configureViper wires environment lookup and defaults into v.
// VERIFACT_LLM_PROVIDER overrides llm.provider, and so on.
func configureViper(v *viper.Viper) error {
	v.SetEnvPrefix("VERIFACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return registerDefaults(v)
}

// registerDefaults makes every config key known to v so that environment
// variables resolve even when no config file sets the key
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	setDefaults(v, "", tree)

	// Keys omitted from the YAML form
	for _, key := range []string{"llm.api_key", "llm.base_url", "http.http_proxy", "http.https_proxy", "http.no_proxy", "logging.file"} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setDefaults(v, full, sub)
			continue
		}
		v.SetDefault(full, value)
	}
}

// loadConfig merges defaults, config file, environment and bound flags,
// then fills in credentials and validates the result
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKeyFromEnv(cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	// Per-step models fall back to the provider model
	if cfg.Verification.Model == "" {
		cfg.Verification.Model = cfg.LLM.Model
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = cfg.LLM.Model
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func apiKeyFromEnv(provider string) string {
	for _, name := range llm.APIKeyEnvVars(provider) {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

// requireAPIKey reports a helpful error when a hosted provider has no key
func requireAPIKey(cfg *model.Config) error {
	names := llm.APIKeyEnvVars(cfg.LLM.Provider)
	if len(names) == 0 || cfg.LLM.APIKey != "" {
		return nil
	}
	return fmt.Errorf("no API key for %s: set %s or VERIFACT_LLM_API_KEY", cfg.LLM.Provider, strings.Join(names, " or "))
}
