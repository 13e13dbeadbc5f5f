// Package config loads runtime settings from defaults, an optional YAML
// file, a .env file and MATHPROGRESS_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/mathprogress/internal/backoff"
	"github.com/abhisek/mathprogress/internal/llm"
	"github.com/abhisek/mathprogress/internal/logger"
)

const envPrefix = "MATHPROGRESS"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	DBPath   string         `mapstructure:"db_path"`
	Log      logger.Config  `mapstructure:"log"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Store    StoreConfig    `mapstructure:"store"`
	Attempt  AttemptConfig  `mapstructure:"attempt"`
	Hints    HintsConfig    `mapstructure:"hints"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

type CalendarConfig struct {
	// UTCOffset anchors "today" for review scheduling.
	UTCOffset time.Duration `mapstructure:"utc_offset"`
}

type StoreConfig struct {
	// StrictInvariants panics on invariant violations. Unset means strict
	// everywhere except production.
	StrictInvariants *bool         `mapstructure:"strict_invariants"`
	ConflictRetries  int           `mapstructure:"conflict_retries"`
	ConflictWait     time.Duration `mapstructure:"conflict_wait"`
}

type AttemptConfig struct {
	DefaultTotal int `mapstructure:"default_total"`
}

type HintsConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	RatePerMin  float64 `mapstructure:"rate_per_min"`
	Burst       int     `mapstructure:"burst"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMConfig selects the hint model. An empty provider disables LLM hints
// and "auto" picks the first provider with a well-known API key variable.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`

	Anthropic  ProviderConfig `mapstructure:"anthropic"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	Gemini     ProviderConfig `mapstructure:"gemini"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

func setDefaults(v *viper.Viper) {
	lc := logger.DefaultConfig()
	lp := llm.DefaultConfig()
	cp := backoff.ConflictPolicy()

	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("db_path", "")

	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.file", lc.File)
	v.SetDefault("log.max_size_mb", lc.MaxSizeMB)
	v.SetDefault("log.max_backups", lc.MaxBackups)
	v.SetDefault("log.max_age_days", lc.MaxAgeDays)
	v.SetDefault("log.compress", lc.Compress)

	v.SetDefault("calendar.utc_offset", "9h")

	v.SetDefault("store.conflict_retries", cp.MaxAttempts)
	v.SetDefault("store.conflict_wait", cp.InitialWait.String())

	v.SetDefault("attempt.default_total", 10)

	v.SetDefault("hints.enabled", true)
	v.SetDefault("hints.rate_per_min", 30.0)
	v.SetDefault("hints.burst", 5)
	v.SetDefault("hints.max_tokens", 256)
	v.SetDefault("hints.temperature", 0.3)

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.timeout", lp.Timeout.String())
	v.SetDefault("llm.max_attempts", lp.Retry.MaxAttempts)
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", lp.Anthropic.Model)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", lp.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", lp.Gemini.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", lp.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", lp.OpenRouter.BaseURL)
}

// Load reads configuration. path names an optional YAML file; when empty,
// mathprogress.yaml is looked up in the working directory and the user
// config directory. A .env file in the working directory is loaded into
// the environment first without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so AutomaticEnv alone would not surface it to Unmarshal.
	if err := v.BindEnv("store.strict_invariants"); err != nil {
		return nil, err
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("mathprogress")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/mathprogress")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Calendar.UTCOffset < -14*time.Hour || c.Calendar.UTCOffset > 14*time.Hour {
		errs = append(errs, fmt.Errorf("calendar.utc_offset %s is out of range", c.Calendar.UTCOffset))
	}
	if c.Attempt.DefaultTotal < 1 {
		errs = append(errs, fmt.Errorf("attempt.default_total must be positive, got %d", c.Attempt.DefaultTotal))
	}
	if c.Hints.RatePerMin < 0 || c.Hints.Burst < 0 {
		errs = append(errs, errors.New("hints.rate_per_min and hints.burst must not be negative"))
	}
	return errors.Join(errs...)
}

// StrictInvariants reports whether invariant violations should panic.
func (c *Config) StrictInvariants() bool {
	if c.Store.StrictInvariants != nil {
		return *c.Store.StrictInvariants
	}
	return c.Env != EnvProduction
}

// ConflictPolicy is the retry policy for optimistic-concurrency conflicts.
func (c *Config) ConflictPolicy() backoff.Policy {
	p := backoff.ConflictPolicy()
	if c.Store.ConflictRetries > 0 {
		p.MaxAttempts = c.Store.ConflictRetries
	}
	if c.Store.ConflictWait > 0 {
		p.InitialWait = c.Store.ConflictWait
	}
	return p
}

// LLMProvider maps the settings onto llm.Config. It reports false when LLM
// hints are disabled or "auto" finds no API key.
func (c *Config) LLMProvider(getenv func(string) string) (llm.Config, bool) {
	out := llm.DefaultConfig()
	out.Anthropic = llm.AnthropicConfig{APIKey: c.LLM.Anthropic.APIKey, Model: c.LLM.Anthropic.Model}
	out.OpenAI = llm.OpenAIConfig{APIKey: c.LLM.OpenAI.APIKey, Model: c.LLM.OpenAI.Model, BaseURL: c.LLM.OpenAI.BaseURL}
	out.Gemini = llm.GeminiConfig{APIKey: c.LLM.Gemini.APIKey, Model: c.LLM.Gemini.Model}
	out.OpenRouter = llm.OpenRouterConfig{APIKey: c.LLM.OpenRouter.APIKey, Model: c.LLM.OpenRouter.Model, BaseURL: c.LLM.OpenRouter.BaseURL}
	if c.LLM.Timeout > 0 {
		out.Timeout = c.LLM.Timeout
	}
	if c.LLM.MaxAttempts > 0 {
		out.Retry.MaxAttempts = c.LLM.MaxAttempts
	}

	switch c.LLM.Provider {
	case "", "none":
		return out, false
	case "auto":
		return llm.Discover(out, getenv)
	default:
		out.Provider = c.LLM.Provider
		return out, true
	}
}
