package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Market    MarketConfig    `mapstructure:"market"`
	Social    SocialConfig    `mapstructure:"social"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Warmup    WarmupConfig    `mapstructure:"warmup"`
	Meme      MemeConfig      `mapstructure:"meme"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// IsDev reports whether the service runs in the dev environment.
func (a AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), "dev")
}

type ServerConfig struct {
	HTTPAddr          string        `mapstructure:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	Swagger           bool          `mapstructure:"swagger"`
}

type LogConfig struct {
	Level             string   `mapstructure:"level"`
	Encoding          string   `mapstructure:"encoding"`
	Development       bool     `mapstructure:"development"`
	Sampling          bool     `mapstructure:"sampling"`
	DisableCaller     bool     `mapstructure:"disable_caller"`
	DisableStacktrace bool     `mapstructure:"disable_stacktrace"`
	OutputPaths       []string `mapstructure:"output_paths"`
}

type CacheConfig struct {
	Backend        string        `mapstructure:"backend"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MarketConfig struct {
	BaseURL  string            `mapstructure:"base_url"`
	APIKey   string            `mapstructure:"api_key"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	CacheTTL time.Duration     `mapstructure:"cache_ttl"`
	IDs      map[string]string `mapstructure:"ids"`
}

type SocialConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type OracleConfig struct {
	Provider  string        `mapstructure:"provider"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SentimentConfig struct {
	TTL                  time.Duration `mapstructure:"ttl"`
	PriceChangeThreshold float64       `mapstructure:"price_change_threshold"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	DedupeInflight       bool          `mapstructure:"dedupe_inflight"`
}

type WarmupConfig struct {
	OnStartup bool     `mapstructure:"on_startup"`
	BatchSize int      `mapstructure:"batch_size"`
	Schedule  string   `mapstructure:"schedule"`
	Tokens    []string `mapstructure:"tokens"`
}

type MemeConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	ImageBaseURL string        `mapstructure:"image_base_url"`
	DefaultTheme string        `mapstructure:"default_theme"`
}

// AuditConfig points the token audit at GoPlus. Contracts maps a lowercase
// symbol to "<chain_id>:<address>".
type AuditConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	BaseURL   string            `mapstructure:"base_url"`
	APIKey    string            `mapstructure:"api_key"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	CacheTTL  time.Duration     `mapstructure:"cache_ttl"`
	Contracts map[string]string `mapstructure:"contracts"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	AdminEmails []string      `mapstructure:"admin_emails"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int64         `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// DefaultJWTSecret is only acceptable in the dev environment.
const DefaultJWTSecret = "dev-secret-change-me"

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTIMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly && path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	cfg.Social.Provider = strings.ToLower(strings.TrimSpace(cfg.Social.Provider))
	cfg.Oracle.Provider = strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "easyweb3-sentiment")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.swagger", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.retry_attempts", 3)
	v.SetDefault("cache.retry_base_delay", "50ms")
	v.SetDefault("cache.retry_max_delay", "1s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("market.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.timeout", "8s")
	v.SetDefault("market.cache_ttl", "15s")
	v.SetDefault("market.ids", map[string]string{
		"btc":  "bitcoin",
		"eth":  "ethereum",
		"sui":  "sui",
		"sol":  "solana",
		"usdt": "tether",
	})

	v.SetDefault("social.provider", "stub")
	v.SetDefault("social.base_url", "")
	v.SetDefault("social.timeout", "8s")

	v.SetDefault("oracle.provider", "openai")
	v.SetDefault("oracle.base_url", "https://api.atoma.network/v1")
	v.SetDefault("oracle.model", "meta-llama/Llama-3.3-70B-Instruct")
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.timeout", "30s")

	v.SetDefault("sentiment.ttl", "15m")
	v.SetDefault("sentiment.price_change_threshold", 0.05)
	v.SetDefault("sentiment.call_timeout", "20s")
	v.SetDefault("sentiment.dedupe_inflight", true)

	v.SetDefault("warmup.on_startup", true)
	v.SetDefault("warmup.batch_size", 10)
	v.SetDefault("warmup.schedule", "")
	v.SetDefault("warmup.tokens", []string{"BTC:positive", "ETH:positive", "SUI:positive", "SOL:positive", "USDT:neutral"})

	v.SetDefault("meme.ttl", "24h")
	v.SetDefault("meme.image_base_url", "https://api.defidetector.com/memes")
	v.SetDefault("meme.default_theme", "crypto")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.base_url", "https://api.gopluslabs.io")
	v.SetDefault("audit.api_key", "")
	v.SetDefault("audit.timeout", "8s")
	v.SetDefault("audit.cache_ttl", "5m")
	v.SetDefault("audit.contracts", map[string]string{
		"usdt": "1:0xdac17f958d2ee523a2206206994597c13d831ec7",
		"pepe": "1:0x6982508145454ce325ddbe47a25d4ec3d2311933",
		"shib": "1:0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce",
	})

	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.admin_emails", []string{})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "easyweb3")
}
