package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Identity service
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 32 characters")
	}

	// Database: either a URL or a password for the discrete fields
	if c.DB.URL == "" && c.DB.Password == "" {
		errs = append(errs, "DB_URL or DB_PASSWORD is required")
	}

	// Completion API
	if c.OpenAI.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required")
	}

	// Payment providers
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		errs = append(errs, "RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		errs = append(errs, "STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	// Pricing
	if c.Pricing.HomeAmount <= 0 || c.Pricing.DefaultAmount <= 0 {
		errs = append(errs, "PRICING_HOME_AMOUNT and PRICING_DEFAULT_AMOUNT must be positive")
	}
	if len(c.Pricing.HomeCurrency) != 3 || len(c.Pricing.DefaultCurrency) != 3 {
		errs = append(errs, "pricing currencies must be 3-letter ISO codes")
	}

	// Chat
	if c.Chat.DailyLimit < 1 {
		errs = append(errs, fmt.Sprintf("CHAT_DAILY_LIMIT must be positive, got %d", c.Chat.DailyLimit))
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.URL == "" && (c.DB.Port < 1 || c.DB.Port > 65535) {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Optional integrations: warn only
	if c.Stripe.SecretKey == "" {
		slog.Warn("STRIPE_SECRET_KEY is empty, stripe checkout and webhook are disabled")
	}
	if c.NATS.URL == "" {
		slog.Warn("NATS_URL is empty, domain events will not be published")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
