package model

import (
	"fmt"
	"time"
)

// Config is the process-wide configuration, loaded once at startup
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Synthesis    SynthesisConfig    `yaml:"synthesis" mapstructure:"synthesis"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig    `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig selects and reaches the text-generation service
type LLMConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	Model    string        `yaml:"model" mapstructure:"model"`
	APIKey   string        `yaml:"-" mapstructure:"api_key"` // never written to config files
	BaseURL  string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"` // HTTP client ceiling
}

// VerificationConfig controls the verifier and its regeneration loop.
// Temperature is part of the contract and must stay 0.
type VerificationConfig struct {
	Model           string        `yaml:"model,omitempty" mapstructure:"model"` // Overrides llm.model for verification
	MaxOutputTokens int           `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per request, not per loop
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	Debug           bool          `yaml:"debug" mapstructure:"debug"`
}

// MaxAttempts is the total number of verification checks allowed per candidate
func (c VerificationConfig) MaxAttempts() int {
	return c.MaxRetries + 1
}

// SynthesisConfig controls the LLM-backed regenerator used by the CLI
type SynthesisConfig struct {
	Model           string        `yaml:"model,omitempty" mapstructure:"model"`
	MaxOutputTokens int           `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig controls the verdict cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // Stories verified in parallel
	FetchWorkers int `yaml:"fetch_workers" mapstructure:"fetch_workers"` // Source pages fetched in parallel per story
}

// RateLimitConfig bounds request rates per provider and per source host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig is used when fetching source pages for enrichment
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AuthorityConfig drives source authority classification in reports
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PathPatterns     []PathPattern     `yaml:"path_patterns" mapstructure:"path_patterns"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host -> tier, checked first
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  60 * time.Second,
		},
		Verification: VerificationConfig{
			MaxOutputTokens: 2048,
			Temperature:     0,
			Timeout:         30 * time.Second,
			MaxRetries:      2,
		},
		Synthesis: SynthesisConfig{
			MaxOutputTokens: 2048,
			Temperature:     0.4,
			Timeout:         60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".verifact-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			FetchWorkers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "verifact/0.1 (+https://github.com/ppiankov/verifact)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"apnews.com",
				"reuters.com",
				"afp.com",
				"un.org",
				"who.int",
				"europa.eu",
				"gov.uk",
			},
			SecondaryDomains: []string{
				"bbc.co.uk",
				"bbc.com",
				"nytimes.com",
				"washingtonpost.com",
				"theguardian.com",
				"ft.com",
				"bloomberg.com",
				"wsj.com",
				"npr.org",
				"aljazeera.com",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/(press|newsroom)(-releases?)?/`, Tier: "primary"},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks invariants that cannot be expressed in the types
func (c *Config) Validate() error {
	if c.Verification.Temperature != 0 {
		return fmt.Errorf("verification.temperature must be 0, got %v", c.Verification.Temperature)
	}
	if c.Verification.MaxRetries < 0 {
		return fmt.Errorf("verification.max_retries must be >= 0, got %d", c.Verification.MaxRetries)
	}
	if c.Verification.MaxOutputTokens <= 0 {
		return fmt.Errorf("verification.max_output_tokens must be positive, got %d", c.Verification.MaxOutputTokens)
	}
	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("verification.timeout must be positive, got %v", c.Verification.Timeout)
	}
	if c.Concurrency.Workers <= 0 {
		return fmt.Errorf("concurrency.workers must be positive, got %d", c.Concurrency.Workers)
	}
	return nil
}
