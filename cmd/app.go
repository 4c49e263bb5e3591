package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/timvw/reel-judge/internal/analyzer"
	"github.com/timvw/reel-judge/internal/cache"
	"github.com/timvw/reel-judge/internal/catalog"
	"github.com/timvw/reel-judge/internal/config"
	"github.com/timvw/reel-judge/internal/llm"
	"github.com/timvw/reel-judge/internal/logging"
	telem "github.com/timvw/reel-judge/internal/otel"
	"github.com/timvw/reel-judge/internal/pipeline"
	"github.com/timvw/reel-judge/internal/store"
	"go.uber.org/zap"
)

// app holds what every command shares: config, logger, telemetry and the
// store. Model and catalog clients are only built by commands that call out.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tel    *telem.Telemetry
	gw     *store.SQLGateway
	repo   *store.Repository
}

// openApp loads configuration and opens the migrated store.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	if cfg.ConfigFile != "" {
		logger.Debug("config loaded", zap.String("path", cfg.ConfigFile))
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.Config{
		Endpoint: cfg.OTEL.Endpoint,
		Headers:  cfg.OTEL.Headers,
	})
	if err != nil {
		logger.Warn("otel init failed", zap.Error(err))
	}

	gw, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := gw.Migrate(); err != nil {
		_ = gw.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		tel:    tel,
		gw:     gw,
		repo:   store.NewRepository(store.WithRetry(gw, 3, logger)),
	}, nil
}

// Close flushes telemetry and closes the store.
func (a *app) Close() {
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Warn("otel shutdown failed", zap.Error(err))
		}
	}
	if err := a.gw.Close(); err != nil {
		a.logger.Warn("closing database failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) metrics() *telem.Metrics {
	if a.tel == nil {
		return nil
	}
	return a.tel.Metrics
}

// newPipeline builds the full dependency graph. progress may be nil.
func (a *app) newPipeline(ctx context.Context, progress func(string)) (*pipeline.Pipeline, error) {
	chatter, err := newChatter(ctx, a.cfg.LLM, a.logger)
	if err != nil {
		return nil, err
	}

	metrics := a.metrics()
	probeCache := cache.New(a.cfg.Cache.Size)
	translator := &analyzer.Translator{
		Chatter: chatter,
		Metrics: metrics,
		Logger:  a.logger,
	}

	return pipeline.New(pipeline.Deps{
		Catalog: catalog.New(catalog.Config{
			BaseURL:           a.cfg.TMDB.BaseURL,
			Token:             a.cfg.TMDB.Token,
			Language:          a.cfg.TMDB.Language,
			RequestsPerSecond: a.cfg.TMDB.RequestsPerSecond,
		}, a.logger),
		Repo: a.repo,
		Evaluator: &analyzer.Evaluator{
			Chatter:    chatter,
			Cache:      probeCache,
			Translator: translator,
			Metrics:    metrics,
			Logger:     a.logger,
		},
		Translator: translator,
		Summarizer: &analyzer.Summarizer{
			Chatter:    chatter,
			Translator: translator,
			Metrics:    metrics,
			Logger:     a.logger,
		},
		Cache:    probeCache,
		Logger:   a.logger,
		Metrics:  metrics,
		Progress: progress,
	}), nil
}

// newChatter returns the configured provider wrapped with timeout and retry.
func newChatter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (llm.Chatter, error) {
	base, err := newProviderChatter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxAttempts = uint(cfg.Retries) + 1
	retry.Timeout = cfg.TimeoutDuration
	return llm.WithRetry(base, retry, logger), nil
}

func newProviderChatter(ctx context.Context, cfg config.LLMConfig) (llm.Chatter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key found for %s. Set REEL_JUDGE_API_KEY or %s",
			cfg.Provider, providerKeyEnv(cfg.Provider))
	}

	// Azure AI Foundry needs "api-key" next to the SDK's own auth header.
	extraHeaders := map[string]string{}
	if isAzureEndpoint(cfg.BaseURL) {
		extraHeaders["api-key"] = cfg.APIKey
	}

	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicChatter(llm.AnthropicConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			ExtraHeaders: extraHeaders,
		}), nil
	case "openai":
		return llm.NewOpenAIChatter(llm.OpenAIConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			ExtraHeaders: extraHeaders,
		}), nil
	case "google":
		return llm.NewGoogleChatter(ctx, llm.GoogleConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: anthropic, openai, google)", cfg.Provider)
	}
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GEMINI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// isAzureEndpoint checks if a URL is an Azure endpoint.
func isAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}
