package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/config"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/prompt"
	"github.com/kapu/sitcom-match-go/internal/server"
	"github.com/kapu/sitcom-match-go/internal/service/ai"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/internal/service/auth"
	"github.com/kapu/sitcom-match-go/internal/service/cache"
	"github.com/kapu/sitcom-match-go/internal/service/farcaster"
)

// Container holds the assembled services behind the HTTP server.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Catalog   *catalog.Catalog
	Analysis  *analysis.Service
	Fallback  *analysis.FallbackGenerator
	Collector *farcaster.Collector
	Verifier  *auth.Verifier
	Models    *ai.ModelManager
	Cache     cache.Cache
	Server    *server.Server

	closers []func()
}

// Close releases resources in reverse construction order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles every service from configuration. Missing provider keys
// select fixture implementations, each logged at WARN.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	var fixtureModes []string

	// Catalog and prompts
	cat, err := catalog.Load(cfg.Analysis.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load character catalog: %w", err)
	}
	logger.Info("Character catalog loaded",
		zap.Int("characters", cat.Len()),
		zap.String("source", catalogSource(cfg.Analysis.CatalogFile)),
	)
	prompts := prompt.NewPromptBuilder(logger)

	strategy, err := domain.ParseStrategy(cfg.Analysis.Strategy)
	if err != nil {
		return nil, err
	}

	// LLM stack
	completer, models, err := ai.NewCompleter(ctx, ai.ModelManagerConfig{
		GroqAPIKey:     cfg.Groq.APIKey,
		GroqModel:      cfg.Groq.Model,
		OpenAIAPIKey:   cfg.OpenAI.APIKey,
		OpenAIModel:    cfg.OpenAI.Model,
		GeminiAPIKey:   cfg.Gemini.APIKey,
		GeminiModel:    cfg.Gemini.Model,
		EnableFallback: cfg.LLM.EnableFallback,
		Timeout:        cfg.LLM.Timeout,
	}, cat.Characters(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}
	if models == nil {
		fixtureModes = append(fixtureModes, "llm")
	}

	analysisSvc := analysis.NewService(cat, prompts, completer, strategy, logger)
	fallback := analysis.NewFallbackGenerator(cat, cfg.Analysis.FallbackSeed)

	// Bundle cache
	var bundleCache cache.Cache = cache.NopCache{}
	if cfg.Redis.Enabled() {
		redisCache, cacheErr := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			logger.Warn("Redis unavailable, bundle cache disabled", zap.Error(cacheErr))
		} else {
			bundleCache = redisCache
			closers = append(closers, func() {
				_ = redisCache.Close()
			})
		}
	}

	// Farcaster data
	var provider farcaster.Provider
	if cfg.Neynar.APIKey != "" {
		provider = farcaster.NewNeynarClient(cfg.Neynar.BaseURL, cfg.Neynar.APIKey, nil, logger)
	} else {
		logger.Warn("NEYNAR_API_KEY not set, serving fixture Farcaster data")
		provider = farcaster.NewFixtureProvider(logger)
		fixtureModes = append(fixtureModes, "farcaster")
	}
	collector := farcaster.NewCollector(provider, bundleCache, farcaster.CollectorConfig{
		Timeout:    cfg.Farcaster.Timeout,
		FetchLimit: cfg.Farcaster.FetchLimit,
		CacheTTL:   cfg.Farcaster.CacheTTL,
	}, logger)

	// Quick Auth
	verifier := auth.NewVerifier(
		auth.NewJWKSCache(cfg.QuickAuth.JWKSURL, nil, logger),
		auth.VerifierConfig{Issuer: cfg.QuickAuth.Issuer, Domain: cfg.QuickAuth.Domain},
		logger,
	)

	deps := server.Dependencies{
		Analyzer:     analysisSvc,
		Fallback:     fallback,
		Collector:    collector,
		Verifier:     verifier,
		CatalogSize:  cat.Len(),
		KeyReport:    cfg.KeyReport,
		FixtureModes: fixtureModes,
	}
	if models != nil {
		deps.LLM = models
	}

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		Mode:            cfg.Server.Mode,
		Diagnostics:     cfg.Server.Diagnostics,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		FallbackEnabled: cfg.FallbackEnabled(),
	}, deps, logger)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Catalog:   cat,
		Analysis:  analysisSvc,
		Fallback:  fallback,
		Collector: collector,
		Verifier:  verifier,
		Models:    models,
		Cache:     bundleCache,
		Server:    srv,
		closers:   closers,
	}, nil
}

func catalogSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
