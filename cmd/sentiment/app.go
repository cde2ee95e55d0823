package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/audit"
	"github.com/nicekwell/easyweb3-sentiment/internal/auth"
	"github.com/nicekwell/easyweb3-sentiment/internal/cache"
	"github.com/nicekwell/easyweb3-sentiment/internal/config"
	"github.com/nicekwell/easyweb3-sentiment/internal/market"
	"github.com/nicekwell/easyweb3-sentiment/internal/meme"
	"github.com/nicekwell/easyweb3-sentiment/internal/metrics"
	"github.com/nicekwell/easyweb3-sentiment/internal/oracle"
	"github.com/nicekwell/easyweb3-sentiment/internal/ratelimit"
	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
	"github.com/nicekwell/easyweb3-sentiment/internal/social"
)

type backend interface {
	cache.Store
	cache.Counter
	cache.Pinger
}

// app holds the wired service graph shared by every subcommand.
type app struct {
	backend backend
	store   *cache.RetryStore
	metrics *metrics.Manager
	service *sentiment.Service
	warmer  *sentiment.Warmer
	memes   *meme.Generator
	auditor *audit.Auditor
	limiter *ratelimit.Limiter
	jwt     auth.JWT
	policy  auth.Policy
}

func newApp(cfg config.Config, logger *zap.Logger) *app {
	b := newBackend(cfg, logger)
	store := cache.NewRetryStore(b, cache.RetryOptions{
		Attempts:  cfg.Cache.RetryAttempts,
		BaseDelay: cfg.Cache.RetryBaseDelay,
		MaxDelay:  cfg.Cache.RetryMaxDelay,
	}, logger)

	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		m = metrics.NewManager(metrics.WithNamespace(cfg.Metrics.Namespace), metrics.WithRuntimeCollectors())
	}

	mkt := market.CoinGecko{
		BaseURL: cfg.Market.BaseURL,
		APIKey:  cfg.Market.APIKey,
		HTTP:    &http.Client{Timeout: cfg.Market.Timeout},
		Cache:   b,
		TTL:     cfg.Market.CacheTTL,
		IDs:     cfg.Market.IDs,
	}
	orc := newOracle(cfg.Oracle, logger)

	vc := sentiment.NewVolatileCache(store, sentiment.NewStatsTracker(store, m), sentiment.CacheOptions{
		TTL:       cfg.Sentiment.TTL,
		Threshold: cfg.Sentiment.PriceChangeThreshold,
	}, logger)
	svc := sentiment.NewService(vc, mkt, newSocial(cfg.Social, logger), orc, sentiment.Options{
		CallTimeout:    cfg.Sentiment.CallTimeout,
		DedupeInflight: cfg.Sentiment.DedupeInflight,
		Logger:         logger,
		Metrics:        m,
	})

	a := &app{
		backend: b,
		store:   store,
		metrics: m,
		service: svc,
		warmer:  sentiment.NewWarmer(svc, cfg.Warmup.BatchSize, logger, m),
		memes: meme.NewGenerator(store, orc, meme.Options{
			TTL:          cfg.Meme.TTL,
			ImageBaseURL: cfg.Meme.ImageBaseURL,
			DefaultTheme: cfg.Meme.DefaultTheme,
			Logger:       logger,
		}),
		auditor: newAuditor(cfg, mkt, b, logger),
		jwt:     auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL},
		policy:  auth.Policy{AdminEmails: cfg.Auth.AdminEmails},
	}
	if cfg.RateLimit.Enabled {
		a.limiter = ratelimit.New(b, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	return a
}

func (a *app) watchList(tokens []string) []sentiment.WatchListEntry {
	list := sentiment.ParseWatchList(tokens)
	if len(list) == 0 {
		return sentiment.DefaultWatchList
	}
	return list
}

func (a *app) Close() {
	if c, ok := a.backend.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func newBackend(cfg config.Config, logger *zap.Logger) backend {
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemoryStore()
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			logger.Warn("cache backend is redis but redis.addr is empty; falling back to memory")
			return cache.NewMemoryStore()
		}
		return cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		logger.Warn("unknown cache backend, falling back to memory", zap.String("backend", cfg.Cache.Backend))
		return cache.NewMemoryStore()
	}
}

// newAuditor returns nil when audits are disabled.
func newAuditor(cfg config.Config, mkt market.CoinGecko, b backend, logger *zap.Logger) *audit.Auditor {
	if !cfg.Audit.Enabled {
		return nil
	}
	contracts := audit.ParseContracts(cfg.Audit.Contracts)
	if len(contracts) < len(cfg.Audit.Contracts) {
		logger.Warn("skipping malformed audit.contracts entries; expected <chain_id>:<address>")
	}
	scanner := audit.GoPlus{
		BaseURL: cfg.Audit.BaseURL,
		APIKey:  cfg.Audit.APIKey,
		HTTP:    &http.Client{Timeout: cfg.Audit.Timeout},
		Cache:   b,
		TTL:     cfg.Audit.CacheTTL,
	}
	return audit.NewAuditor(mkt, scanner, audit.Options{
		CallTimeout: cfg.Sentiment.CallTimeout,
		Contracts:   contracts,
		Logger:      logger,
	})
}

// adminAllowed refuses the admin surface outside dev while the JWT secret is
// still the built-in default.
func adminAllowed(cfg config.Config) bool {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return false
	}
	return cfg.App.IsDev() || secret != config.DefaultJWTSecret
}

func newSocial(cfg config.SocialConfig, logger *zap.Logger) social.Provider {
	switch cfg.Provider {
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			logger.Warn("social provider is http but social.base_url is empty; using stub")
			return social.Stub{}
		}
		return social.HTTPProvider{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, HTTP: &http.Client{Timeout: cfg.Timeout}}
	case "", "stub":
		return social.Stub{}
	default:
		logger.Warn("unknown social provider, using stub", zap.String("provider", cfg.Provider))
		return social.Stub{}
	}
}

func newOracle(cfg config.OracleConfig, logger *zap.Logger) oracle.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn("oracle.api_key is empty; classification requests will fail upstream")
	}
	switch cfg.Provider {
	case "anthropic":
		return oracle.NewAnthropic(oracle.AnthropicConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
	default:
		return oracle.NewOpenAI(oracle.OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
	}
}

// checkStore fails fast when the backend is unreachable at startup.
func (a *app) checkStore(ctx context.Context) error {
	return a.store.HealthCheck(ctx)
}
