package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aura_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PalmReadingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_palm_readings_total",
			Help: "Palm analyses by outcome (completed, failed, conflict).",
		},
		[]string{"outcome"},
	)

	ChatCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_chat_completions_total",
			Help: "Chat completions by outcome (success, error, limited).",
		},
		[]string{"outcome"},
	)

	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_payments_total",
			Help: "Payment operations by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_webhook_events_total",
			Help: "Stripe webhook events by type and result.",
		},
		[]string{"type", "result"},
	)

	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aura_completion_duration_seconds",
			Help:    "Latency of completion API calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"purpose"},
	)

	AnalyticsCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_analytics_cache_total",
			Help: "Analytics cache lookups by result (hit, miss, bypass, error).",
		},
		[]string{"result"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PalmReadingsTotal,
		ChatCompletionsTotal,
		PaymentsTotal,
		WebhookEventsTotal,
		CompletionDuration,
		AnalyticsCacheTotal,
		RateLimitedTotal,
	)
}
