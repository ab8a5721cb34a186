// Package config provides configuration loading, validation, and defaults
// for the lead engine. It handles YAML config files with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Known provider names accepted in provider_priority.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Default model identifiers per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultOllamaModel    = "llama3.2"
)

// LLMConfig holds provider credentials, model selection, and resilience
// settings for the orchestration client.
type LLMConfig struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OllamaHost      string `yaml:"ollama_host"`

	OpenAIModel    string `yaml:"openai_model"`
	AnthropicModel string `yaml:"anthropic_model"`
	GeminiModel    string `yaml:"gemini_model"`
	OllamaModel    string `yaml:"ollama_model"`

	// ProviderPriority is the ordered fallback sequence. Providers without
	// credentials are skipped at wiring time.
	ProviderPriority []string `yaml:"provider_priority"`

	TimeoutSeconds         int     `yaml:"timeout_seconds"`
	MaxRetries             int     `yaml:"max_retries"`
	RetryBackoffMultiplier float64 `yaml:"retry_backoff_multiplier"`

	// Circuit breaker settings, applied per provider.
	FailureThreshold       int `yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`

	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// RateLimitConfig holds sliding-window quota settings, applied per organization.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	RequestsPerDay    int `yaml:"requests_per_day"`
	BurstSize         int `yaml:"burst_size"`
}

// RedisConfig holds connection settings for the cache and rate limiter store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the root configuration document.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML config file, substitutes ${ENV_VAR} placeholders,
// applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. Exposed for tests and for
// callers that embed their config.
func Parse(data []byte) (*Config, error) {
	// Replace environment variable placeholders.
	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match // Leave placeholder intact if env var not set
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns a Config populated with working defaults. API keys are
// read from the environment by applyEnvOverrides, not here.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			OpenAIModel:    DefaultOpenAIModel,
			AnthropicModel: DefaultAnthropicModel,
			GeminiModel:    DefaultGeminiModel,
			OllamaModel:    DefaultOllamaModel,
			ProviderPriority: []string{
				ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMock,
			},
			TimeoutSeconds:         30,
			MaxRetries:             2,
			RetryBackoffMultiplier: 2.0,
			FailureThreshold:       5,
			RecoveryTimeoutSeconds: 300,
			CacheTTLSeconds:        300,
			MaxTokens:              1024,
			Temperature:            0.3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			RequestsPerHour:   300,
			RequestsPerDay:    2000,
			BurstSize:         5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// applyEnvOverrides fills credential fields from well-known environment
// variables when the config file leaves them empty.
func applyEnvOverrides(cfg *Config) {
	if cfg.LLM.OpenAIAPIKey == "" {
		cfg.LLM.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.GeminiAPIKey == "" {
		cfg.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.LLM.OllamaHost == "" {
		cfg.LLM.OllamaHost = os.Getenv("OLLAMA_HOST")
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" && cfg.Redis.Addr == "localhost:6379" {
		cfg.Redis.Addr = addr
	}
}

// Validate checks the config for values that would break the engine at runtime.
func (c *Config) Validate() error {
	if len(c.LLM.ProviderPriority) == 0 {
		return fmt.Errorf("llm.provider_priority must name at least one provider")
	}
	for _, p := range c.LLM.ProviderPriority {
		switch p {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderMock:
		default:
			return fmt.Errorf("unknown provider %q in llm.provider_priority", p)
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.FailureThreshold <= 0 {
		return fmt.Errorf("llm.failure_threshold must be positive, got %d", c.LLM.FailureThreshold)
	}
	if c.LLM.RecoveryTimeoutSeconds <= 0 {
		return fmt.Errorf("llm.recovery_timeout_seconds must be positive, got %d", c.LLM.RecoveryTimeoutSeconds)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.RequestsPerHour <= 0 || c.RateLimit.RequestsPerDay <= 0 {
		return fmt.Errorf("rate_limit windows must all be positive")
	}
	if c.RateLimit.RequestsPerMinute > c.RateLimit.RequestsPerHour ||
		c.RateLimit.RequestsPerHour > c.RateLimit.RequestsPerDay {
		return fmt.Errorf("rate_limit windows must be non-decreasing: minute <= hour <= day")
	}
	return nil
}

// Timeout returns the per-attempt provider timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RecoveryTimeout returns how long a failed provider stays blocked before
// a probe request is allowed through.
func (c *LLMConfig) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSeconds) * time.Second
}

// CacheTTL returns the extraction cache lifetime.
func (c *LLMConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
