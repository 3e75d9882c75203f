package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurapalm/aura/internal/database"
	mw "github.com/aurapalm/aura/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Palm reading
	GeneratePalmReading http.HandlerFunc
	GetPalmReading      http.HandlerFunc

	// Chat
	ChatCompletion    http.HandlerFunc
	CheckMessageLimit http.HandlerFunc
	ChatHistory       http.HandlerFunc

	// Payments
	CreatePayment         http.HandlerFunc
	CreateCheckoutSession http.HandlerFunc
	ValidateCoupon        http.HandlerFunc
	VerifyPayment         http.HandlerFunc
	StripeWebhook         http.HandlerFunc

	// Profiles and feedback
	GetProfile       http.HandlerFunc
	UpdateProfile    http.HandlerFunc
	GetProfileStatus http.HandlerFunc
	SubmitFeedback   http.HandlerFunc

	// Admin
	AdminAnalytics http.HandlerFunc
	AdminAuditLog  http.HandlerFunc
	AdminDashboard http.HandlerFunc

	AuthMiddleware       func(http.Handler) http.Handler
	PageAuthMiddleware   func(http.Handler) http.Handler
	AdminMiddleware      func(http.Handler) http.Handler
	FunctionsRateLimiter func(http.Handler) http.Handler
}

// Probe is one readiness dependency. Optional probes report but never fail
// readiness.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	DB                 database.Pinger
	Probes             []Probe
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy", "database": "healthy"}
		status := http.StatusOK

		if _, err := database.HealthCheck(r.Context(), cfg.DB); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		for _, p := range cfg.Probes {
			if p.Check == nil {
				health[p.Name] = "not configured"
				continue
			}
			if err := p.Check(r.Context()); err != nil {
				health[p.Name] = "unhealthy"
				health["status"] = "degraded"
				if !p.Optional {
					status = http.StatusServiceUnavailable
				}
				continue
			}
			health[p.Name] = "healthy"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/functions/v1", func(r chi.Router) {
		// Preflight for every function, including plain OPTIONS without CORS headers
		r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		// Stripe calls this directly; the signature is the authentication.
		r.Post("/stripe-webhook", h.StripeWebhook)

		r.Group(func(r chi.Router) {
			if h.FunctionsRateLimiter != nil {
				r.Use(h.FunctionsRateLimiter)
			}
			r.Use(h.AuthMiddleware)

			r.Post("/generate-palm-reading", h.GeneratePalmReading)
			r.Get("/get-palm-reading", h.GetPalmReading)

			r.Post("/chat-completion", h.ChatCompletion)
			r.Post("/check-message-limit", h.CheckMessageLimit)
			r.Get("/chat-history", h.ChatHistory)

			r.Post("/create-payment", h.CreatePayment)
			r.Post("/create-checkout-session", h.CreateCheckoutSession)
			r.Post("/validate-coupon", h.ValidateCoupon)
			r.Post("/verify-payment", h.VerifyPayment)

			r.Get("/get-profile", h.GetProfile)
			r.Post("/update-profile", h.UpdateProfile)
			r.Get("/get-profile-status", h.GetProfileStatus)
			r.Post("/submit-feedback", h.SubmitFeedback)

			r.Group(func(r chi.Router) {
				r.Use(h.AdminMiddleware)
				r.Get("/admin-analytics", h.AdminAnalytics)
				r.Get("/admin-audit-log", h.AdminAuditLog)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		if h.FunctionsRateLimiter != nil {
			r.Use(h.FunctionsRateLimiter)
		}
		r.Use(h.PageAuthMiddleware)
		r.Use(h.AdminMiddleware)
		r.Get("/dashboard", h.AdminDashboard)
	})

	return r
}
