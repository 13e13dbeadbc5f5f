package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mathprogress/internal/llm"
)

// isolate runs the test in an empty directory so no stray .env or config
// file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 9*time.Hour, cfg.Calendar.UTCOffset)
	assert.Equal(t, 10, cfg.Attempt.DefaultTotal)
	assert.True(t, cfg.Hints.Enabled)
	assert.Equal(t, 256, cfg.Hints.MaxTokens)
	assert.Nil(t, cfg.Store.StrictInvariants)
	assert.True(t, cfg.StrictInvariants())
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)

	_, enabled := cfg.LLMProvider(func(string) string { return "" })
	assert.False(t, enabled)
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: production
calendar:
  utc_offset: -5h
attempt:
  default_total: 15
llm:
  provider: anthropic
  anthropic:
    model: claude-sonnet
`), 0o644))

	t.Setenv("MATHPROGRESS_ATTEMPT_DEFAULT_TOTAL", "20")
	t.Setenv("MATHPROGRESS_LLM_ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, -5*time.Hour, cfg.Calendar.UTCOffset)
	assert.Equal(t, 20, cfg.Attempt.DefaultTotal, "env overrides file")
	assert.False(t, cfg.StrictInvariants(), "production is lenient by default")

	lc, enabled := cfg.LLMProvider(os.Getenv)
	require.True(t, enabled)
	assert.Equal(t, llm.ProviderAnthropic, lc.Provider)
	assert.Equal(t, "sk-ant-test", lc.Anthropic.APIKey)
	assert.Equal(t, "claude-sonnet", lc.Anthropic.Model)
	assert.NoError(t, lc.Validate())
}

func TestLoad_StrictInvariantsFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MATHPROGRESS_ENV", "production")
	t.Setenv("MATHPROGRESS_STORE_STRICT_INVARIANTS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Store.StrictInvariants)
	assert.True(t, cfg.StrictInvariants())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MATHPROGRESS_HINTS_BURST=9\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MATHPROGRESS_HINTS_BURST") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Hints.Burst)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("MATHPROGRESS_ENV", "staging")
	_, err := Load("")
	assert.ErrorContains(t, err, "env must be")
}

func TestLLMProvider_Auto(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "auto", MaxAttempts: 5}}
	env := map[string]string{"GEMINI_API_KEY": "g-key"}

	lc, enabled := cfg.LLMProvider(func(k string) string { return env[k] })
	require.True(t, enabled)
	assert.Equal(t, llm.ProviderGemini, lc.Provider)
	assert.Equal(t, "g-key", lc.Gemini.APIKey)
	assert.Equal(t, 5, lc.Retry.MaxAttempts)
}

func TestConflictPolicy(t *testing.T) {
	cfg := &Config{Store: StoreConfig{ConflictRetries: 8, ConflictWait: 20 * time.Millisecond}}
	p := cfg.ConflictPolicy()
	assert.Equal(t, 8, p.MaxAttempts)
	assert.Equal(t, 20*time.Millisecond, p.InitialWait)
}
