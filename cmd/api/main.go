package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurapalm/aura/internal/analytics"
	"github.com/aurapalm/aura/internal/api"
	"github.com/aurapalm/aura/internal/audit"
	"github.com/aurapalm/aura/internal/auth"
	"github.com/aurapalm/aura/internal/chat"
	"github.com/aurapalm/aura/internal/config"
	"github.com/aurapalm/aura/internal/dashboard"
	"github.com/aurapalm/aura/internal/database"
	"github.com/aurapalm/aura/internal/feedback"
	"github.com/aurapalm/aura/internal/llm"
	mw "github.com/aurapalm/aura/internal/middleware"
	inats "github.com/aurapalm/aura/internal/nats"
	"github.com/aurapalm/aura/internal/palm"
	"github.com/aurapalm/aura/internal/payments"
	"github.com/aurapalm/aura/internal/profiles"
	iredis "github.com/aurapalm/aura/internal/redis"
	"github.com/aurapalm/aura/internal/server"
)

const adminCookie = "aura_admin_token"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}

	// NATS is optional; without it events are dropped and the audit log stays empty.
	var (
		natsClient *inats.Client
		events     inats.EventPublisher = inats.NopPublisher{}
	)
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		events = inats.NewPublisher(natsClient.JetStream())
	}

	auditRepo := audit.NewRepository(pool)
	if natsClient != nil {
		consumer := audit.NewConsumer(auditRepo, inats.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Auth
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	requireAdmin := auth.RequireAdmin(auth.NewAdminRepository(pool))

	completer := llm.NewClient(cfg.OpenAI)

	// Palm
	palmSvc := palm.NewService(palm.NewRepository(pool), completer, events, cfg.Palm.Timeout)
	palmHandler := palm.NewHandler(palmSvc)

	// Chat
	quota := chat.NewQuota(chat.NewLimitRepository(pool), cfg.Chat.DailyLimit)
	chatSvc := chat.NewService(chat.NewSessionRepository(pool), quota, completer, palmSvc, cfg.Chat.HistoryTurns)
	chatHandler := chat.NewHandler(chatSvc)

	// Payments
	var checkout payments.CheckoutProvider
	if sc := payments.NewStripeCheckout(cfg.Stripe); sc != nil {
		checkout = sc
	}
	paymentSvc := payments.NewService(payments.ServiceDeps{
		Repo:          payments.NewRepository(pool),
		Pricing:       payments.NewPricing(cfg.Pricing),
		Orders:        payments.NewRazorpay(cfg.Razorpay),
		Checkout:      checkout,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Events:        events,
	})
	paymentHandler := payments.NewHandler(paymentSvc)

	// Profiles and feedback
	profileHandler := profiles.NewHandler(profiles.NewService(profiles.NewRepository(pool), palmSvc, events))
	feedbackHandler := feedback.NewHandler(feedback.NewService(feedback.NewRepository(pool), events))

	// Admin
	redisPing := func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	probes := analytics.Probes{DB: pool, Cache: redisPing}
	if natsClient != nil {
		probes.EventBus = natsClient.Healthy
	}
	analyticsSvc := analytics.NewService(
		analytics.NewRepository(pool),
		analytics.NewRedisCache(redisClient, cfg.Analytics.CacheTTL),
		probes,
		cfg.Analytics.ReportingCurrency,
	)
	analyticsHandler := analytics.NewHandler(analyticsSvc)
	dashboardHandler := dashboard.NewHandler(analyticsSvc)
	auditHandler := audit.NewHandler(auditRepo)

	limiter := mw.NewRateLimiter(redisClient, "functions", cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSec)

	natsProbe := api.Probe{Name: "nats", Optional: true}
	if natsClient != nil {
		natsProbe.Check = func(context.Context) error {
			if !natsClient.Healthy() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}

	// Router
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		DB:                 pool,
		Probes: []api.Probe{
			{Name: "redis", Check: redisPing},
			natsProbe,
		},
	}, api.HandlerSet{
		GeneratePalmReading: palmHandler.Generate,
		GetPalmReading:      palmHandler.Get,

		ChatCompletion:    chatHandler.Complete,
		CheckMessageLimit: chatHandler.CheckLimit,
		ChatHistory:       chatHandler.History,

		CreatePayment:         paymentHandler.CreatePayment,
		CreateCheckoutSession: paymentHandler.CreateCheckoutSession,
		ValidateCoupon:        paymentHandler.ValidateCoupon,
		VerifyPayment:         paymentHandler.VerifyPayment,
		StripeWebhook:         paymentHandler.StripeWebhook,

		GetProfile:       profileHandler.Get,
		UpdateProfile:    profileHandler.Update,
		GetProfileStatus: profileHandler.Status,
		SubmitFeedback:   feedbackHandler.Submit,

		AdminAnalytics: analyticsHandler.Get,
		AdminAuditLog:  auditHandler.List,
		AdminDashboard: dashboardHandler.Page,

		AuthMiddleware:       auth.Middleware(verifier),
		PageAuthMiddleware:   auth.CookieMiddleware(verifier, adminCookie),
		AdminMiddleware:      requireAdmin,
		FunctionsRateLimiter: limiter.Middleware,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	srv.OnShutdown(func(context.Context) {
		if err := redisClient.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	})
	if natsClient != nil {
		srv.OnShutdown(func(context.Context) { natsClient.Close() })
	}
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
