package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/mathprogress/internal/store"
)

// NewProvider builds the configured backend and wraps it as
// caller -> timeout -> retry -> logging -> backend, so every attempt is
// recorded separately. All backends share one SchemaCache.
func NewProvider(ctx context.Context, cfg Config, events store.EventRepo, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	schemas := NewSchemaCache()

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic, schemas)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI, schemas)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini, schemas)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter, schemas)
	case ProviderMock:
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	p := WithLogging(base, cfg.Provider, events, logger)
	p = WithRetry(p, cfg.Retry)
	if cfg.Timeout > 0 {
		p = &timeoutProvider{inner: p, timeout: cfg.Timeout}
	}
	return p, nil
}
