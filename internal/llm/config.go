package llm

import (
	"fmt"
	"time"

	"github.com/abhisek/mathprogress/internal/backoff"
)

// Provider names accepted by Config.Provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures one backend.
type Config struct {
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      backoff.Policy

	// Timeout bounds one Generate call including retries. Zero disables it.
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DefaultConfig returns the mock backend with production retry settings.
// Hints work offline until a real provider is configured.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderMock,
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "google/gemini-2.0-flash-exp", BaseURL: defaultOpenRouterBaseURL},
		Retry:      backoff.DefaultPolicy(),
		Timeout:    30 * time.Second,
	}
}

// Discover fills in the first provider whose well-known API key variable
// is set, in the order Gemini, OpenAI, Anthropic, OpenRouter. It reports
// false when none is set.
func Discover(cfg Config, getenv func(string) string) (Config, bool) {
	switch {
	case getenv("GEMINI_API_KEY") != "":
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = getenv("GEMINI_API_KEY")
	case getenv("OPENAI_API_KEY") != "":
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = getenv("OPENAI_API_KEY")
	case getenv("ANTHROPIC_API_KEY") != "":
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = getenv("ANTHROPIC_API_KEY")
	case getenv("OPENROUTER_API_KEY") != "":
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = getenv("OPENROUTER_API_KEY")
	default:
		return cfg, false
	}
	return cfg, true
}

// Validate checks that the selected backend has an API key.
func (c Config) Validate() error {
	var key string
	switch c.Provider {
	case ProviderAnthropic:
		key = c.Anthropic.APIKey
	case ProviderOpenAI:
		key = c.OpenAI.APIKey
	case ProviderGemini:
		key = c.Gemini.APIKey
	case ProviderOpenRouter:
		key = c.OpenRouter.APIKey
	case ProviderMock:
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if key == "" {
		return fmt.Errorf("an API key is required for the %s provider", c.Provider)
	}
	return nil
}

// ProviderInfo describes a backend for listing.
type ProviderInfo struct {
	Name       string
	Model      string
	Configured bool
}

// Providers lists every backend with its resolved model and whether an
// API key is present.
func (c Config) Providers() []ProviderInfo {
	return []ProviderInfo{
		{Name: ProviderAnthropic, Model: resolveModel(c.Anthropic.Model, anthropicModels), Configured: c.Anthropic.APIKey != ""},
		{Name: ProviderOpenAI, Model: resolveModel(c.OpenAI.Model, openaiModels), Configured: c.OpenAI.APIKey != ""},
		{Name: ProviderGemini, Model: resolveModel(c.Gemini.Model, geminiModels), Configured: c.Gemini.APIKey != ""},
		{Name: ProviderOpenRouter, Model: c.OpenRouter.Model, Configured: c.OpenRouter.APIKey != ""},
		{Name: ProviderMock, Model: "mock", Configured: true},
	}
}

// resolveModel maps a friendly name to a model ID; unknown names pass
// through unchanged.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
