package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abhisek/mathprogress/internal/config"
	"github.com/abhisek/mathprogress/internal/engine"
	"github.com/abhisek/mathprogress/internal/hints"
	"github.com/abhisek/mathprogress/internal/llm"
	"github.com/abhisek/mathprogress/internal/logger"
	"github.com/abhisek/mathprogress/internal/spacedrep"
	"github.com/abhisek/mathprogress/internal/store"
)

// runtime is what a command needs: configuration, a logger and the store.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  string
}

// openRuntime loads configuration, builds the logger and opens the store.
// Callers must Close it.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	log, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath,
		store.WithStrictInvariants(cfg.StrictInvariants()),
		store.WithConflictRetry(cfg.ConflictPolicy()))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Debug("database opened", zap.String("path", dbPath))

	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	return &runtime{
		cfg:      cfg,
		logger:   log,
		store:    st,
		registry: prometheus.NewRegistry(),
		metrics:  metricsFile,
	}, nil
}

func (r *runtime) Close() {
	if r.metrics != "" {
		if err := prometheus.WriteToTextfile(r.metrics, r.registry); err != nil {
			r.logger.Warn("write metrics", zap.String("path", r.metrics), zap.Error(err))
		}
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("close database", zap.Error(err))
	}
	_ = r.logger.Sync()
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// engine builds the practice engine with the configured hint chain.
func (r *runtime) engine(ctx context.Context) (*engine.Service, error) {
	return engine.New(ctx, r.store,
		engine.WithLogger(r.logger),
		engine.WithRegisterer(r.registry),
		engine.WithCalendar(spacedrep.NewCalendar(r.cfg.Calendar.UTCOffset)),
		engine.WithDefaultTotal(r.cfg.Attempt.DefaultTotal),
		engine.WithHints(r.hintProvider(ctx)),
	)
}

// hintProvider returns nil when hints are disabled, the authored-content
// provider when no LLM is configured, and otherwise the LLM with the
// authored content as fallback.
func (r *runtime) hintProvider(ctx context.Context) hints.Provider {
	h := r.cfg.Hints
	if !h.Enabled {
		return nil
	}

	llmCfg, ok := r.cfg.LLMProvider(os.Getenv)
	if !ok {
		return hints.StaticProvider{}
	}
	p, err := llm.NewProvider(ctx, llmCfg, r.store.Events(), r.logger)
	if err != nil {
		r.logger.Warn("LLM provider not configured, using authored hints", zap.Error(err))
		return hints.StaticProvider{}
	}

	limiter := rate.NewLimiter(rate.Limit(h.RatePerMin/60), h.Burst)
	return hints.Chain{
		hints.NewLLMProvider(p, limiter, hints.LLMOptions{
			MaxTokens:   h.MaxTokens,
			Temperature: h.Temperature,
		}),
		hints.StaticProvider{},
	}
}
