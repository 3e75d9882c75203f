package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	OpenAI    OpenAIConfig
	Razorpay  RazorpayConfig
	Stripe    StripeConfig
	Pricing   PricingConfig
	Chat      ChatConfig
	Palm      PalmConfig
	Analytics AnalyticsConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	URL            string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

// DSN returns DB_URL when set (hosted Postgres hands out a full URL),
// otherwise builds one from the discrete fields.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL            string
	ClientName     string
	EventRetention time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// PricingConfig holds the two fixed price points, in minor currency units.
type PricingConfig struct {
	HomeCountry     string
	HomeAmount      int64
	HomeCurrency    string
	DefaultAmount   int64
	DefaultCurrency string
}

type ChatConfig struct {
	DailyLimit   int
	HistoryTurns int
}

type PalmConfig struct {
	Timeout time.Duration
}

type AnalyticsConfig struct {
	CacheTTL          time.Duration
	ReportingCurrency string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	MaxRequests int
	WindowSec   int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			URL:            k.String("db.url"),
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:        k.String("nats.url"),
			ClientName: k.String("nats.client.name"),
		},
		Auth: AuthConfig{
			JWTSecret: k.String("auth.jwt.secret"),
			Issuer:    k.String("auth.issuer"),
			Audience:  k.String("auth.audience"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  k.String("openai.api.key"),
			Model:   k.String("openai.model"),
			BaseURL: k.String("openai.base.url"),
		},
		Razorpay: RazorpayConfig{
			KeyID:     k.String("razorpay.key.id"),
			KeySecret: k.String("razorpay.key.secret"),
		},
		Stripe: StripeConfig{
			SecretKey:     k.String("stripe.secret.key"),
			WebhookSecret: k.String("stripe.webhook.secret"),
			SuccessURL:    k.String("stripe.success.url"),
			CancelURL:     k.String("stripe.cancel.url"),
		},
		Pricing: PricingConfig{
			HomeCountry:     strings.ToUpper(k.String("pricing.home.country")),
			HomeAmount:      k.Int64("pricing.home.amount"),
			HomeCurrency:    strings.ToUpper(k.String("pricing.home.currency")),
			DefaultAmount:   k.Int64("pricing.default.amount"),
			DefaultCurrency: strings.ToUpper(k.String("pricing.default.currency")),
		},
		Chat: ChatConfig{
			DailyLimit:   k.Int("chat.daily.limit"),
			HistoryTurns: k.Int("chat.history.turns"),
		},
		Analytics: AnalyticsConfig{
			ReportingCurrency: strings.ToUpper(k.String("analytics.reporting.currency")),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: k.Int("ratelimit.max"),
			WindowSec:   k.Int("ratelimit.window"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	applyDefaults(cfg)

	// Parse durations
	palmTimeoutStr := k.String("palm.timeout")
	if palmTimeoutStr == "" {
		palmTimeoutStr = "15s"
	}
	cfg.Palm.Timeout, err = time.ParseDuration(palmTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing palm timeout: %w", err)
	}

	cacheTTLStr := k.String("analytics.cache.ttl")
	if cacheTTLStr == "" {
		cacheTTLStr = "60s"
	}
	cfg.Analytics.CacheTTL, err = time.ParseDuration(cacheTTLStr)
	if err != nil {
		return nil, fmt.Errorf("parsing analytics cache ttl: %w", err)
	}

	retentionStr := k.String("nats.event.retention")
	if retentionStr == "" {
		retentionStr = "720h"
	}
	cfg.NATS.EventRetention, err = time.ParseDuration(retentionStr)
	if err != nil {
		return nil, fmt.Errorf("parsing nats event retention: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "postgres"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "postgres"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.NATS.ClientName == "" {
		cfg.NATS.ClientName = "aura-api"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Pricing.HomeCountry == "" {
		cfg.Pricing.HomeCountry = "IN"
	}
	if cfg.Pricing.HomeAmount == 0 {
		cfg.Pricing.HomeAmount = 19900
	}
	if cfg.Pricing.HomeCurrency == "" {
		cfg.Pricing.HomeCurrency = "INR"
	}
	if cfg.Pricing.DefaultAmount == 0 {
		cfg.Pricing.DefaultAmount = 499
	}
	if cfg.Pricing.DefaultCurrency == "" {
		cfg.Pricing.DefaultCurrency = "USD"
	}
	if cfg.Chat.DailyLimit == 0 {
		cfg.Chat.DailyLimit = 10
	}
	if cfg.Chat.HistoryTurns == 0 {
		cfg.Chat.HistoryTurns = 10
	}
	if cfg.Analytics.ReportingCurrency == "" {
		cfg.Analytics.ReportingCurrency = cfg.Pricing.HomeCurrency
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 60
	}
	if cfg.RateLimit.WindowSec == 0 {
		cfg.RateLimit.WindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
