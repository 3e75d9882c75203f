package analytics

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurapalm/aura/internal/database"
	"github.com/aurapalm/aura/internal/metrics"
)

const (
	failedWindow         = 24 * time.Hour
	staleProcessingAfter = 15 * time.Minute
	stalePendingAfter    = time.Hour
)

// Probes checks the backing services for the system health block. A nil
// Cache or EventBus probe means the dependency is not configured.
type Probes struct {
	DB       database.Pinger
	Cache    func(ctx context.Context) error
	EventBus func() bool
}

type Service struct {
	repo     Repository
	cache    Cache
	probes   Probes
	currency string
	now      func() time.Time
}

// NewService builds the aggregator service. cache may be nil.
func NewService(repo Repository, cache Cache, probes Probes, currency string) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		probes:   probes,
		currency: currency,
		now:      time.Now,
	}
}

// Get returns the dashboard analytics, served from cache unless refresh is
// set. Cache failures are logged and skipped.
func (s *Service) Get(ctx context.Context, refresh bool) (*Analytics, error) {
	if s.cache != nil && !refresh {
		cached, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			metrics.AnalyticsCacheTotal.WithLabelValues("error").Inc()
			slog.Warn("reading analytics cache", "error", err)
		case cached != nil:
			metrics.AnalyticsCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.AnalyticsCacheTotal.WithLabelValues("miss").Inc()
		}
	} else if refresh {
		metrics.AnalyticsCacheTotal.WithLabelValues("bypass").Inc()
	}

	a, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, a); err != nil {
			slog.Warn("writing analytics cache", "error", err)
		}
	}
	return a, nil
}

// Compute runs every aggregator. Aggregators query independently, so counts
// in one response may come from different moments.
func (s *Service) Compute(ctx context.Context) (*Analytics, error) {
	p := PeriodAt(s.now())
	a := &Analytics{GeneratedAt: p.Now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.repo.UserCounts(gctx, p)
		a.UserMetrics = userMetrics(u)
		return err
	})
	g.Go(func() error {
		r, err := s.repo.RevenueCounts(gctx, p, s.currency)
		a.RevenueMetrics = revenueMetrics(r, s.currency)
		return err
	})
	g.Go(func() error {
		u, err := s.repo.UsageCounts(gctx, p)
		a.ServiceUsage = serviceUsage(u)
		return err
	})
	g.Go(func() error {
		f, err := s.repo.FeedbackCounts(gctx)
		a.FeedbackMetrics = feedbackMetrics(f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.SystemHealth = s.health(ctx, p)
	return a, nil
}

func (s *Service) health(ctx context.Context, p Period) SystemHealth {
	h := SystemHealth{CheckedAt: p.Now}

	if s.probes.DB != nil {
		latency, err := database.HealthCheck(ctx, s.probes.DB)
		h.DatabaseReachable = err == nil
		h.DatabaseLatencyMs = round2(float64(latency.Microseconds()) / 1000)
		if err != nil {
			slog.Warn("database health check failed", "error", err)
		}
	}
	if s.probes.Cache != nil {
		h.CacheConfigured = true
		h.CacheReachable = s.probes.Cache(ctx) == nil
	}
	if s.probes.EventBus != nil {
		h.EventBusConfigured = true
		h.EventBusReachable = s.probes.EventBus()
	}

	if h.DatabaseReachable {
		counts, err := s.repo.HealthCounts(ctx, p)
		if err != nil {
			slog.Warn("counting health indicators", "error", err)
		}
		h.FailedReadings24h = counts.FailedReadings24h
		h.StaleProcessing = counts.StaleProcessing
		h.StalePendingOrders = counts.StalePendingOrders
	}

	h.Status = s.classify(h)
	return h
}

func (s *Service) classify(h SystemHealth) HealthStatus {
	if !h.DatabaseReachable {
		return HealthDown
	}
	if (h.CacheConfigured && !h.CacheReachable) ||
		(h.EventBusConfigured && !h.EventBusReachable) ||
		h.StaleProcessing > 0 || h.StalePendingOrders > 0 {
		return HealthDegraded
	}
	return HealthHealthy
}

func userMetrics(u UserCounts) UserMetrics {
	return UserMetrics{
		TotalUsers:        u.Total,
		NewUsersThisMonth: u.ThisMonth,
		NewUsersLastMonth: u.LastMonth,
		GrowthRate:        Growth(u.ThisMonth, u.LastMonth),
		PaidUsers:         u.Paid,
		ConversionRate:    Percent(u.Paid, u.Total),
		ActiveChatToday:   u.ChattedToday,
	}
}

func revenueMetrics(r RevenueCounts, currency string) RevenueMetrics {
	aov := 0.0
	if r.PaidInCurrency > 0 {
		aov = round2(float64(r.Total) / float64(r.PaidInCurrency))
	}
	return RevenueMetrics{
		Currency:          currency,
		TotalRevenue:      r.Total,
		RevenueThisMonth:  r.ThisMonth,
		RevenueLastMonth:  r.LastMonth,
		GrowthRate:        Growth(r.ThisMonth, r.LastMonth),
		PaidOrders:        r.Paid,
		PendingOrders:     r.Pending,
		FailedOrders:      r.Failed,
		AverageOrderValue: aov,
		CouponRedemptions: r.CouponRedemptions,
		TotalDiscount:     r.TotalDiscount,
	}
}

// serviceUsage reports the palm success rate over finished readings only.
func serviceUsage(u UsageCounts) ServiceUsage {
	return ServiceUsage{
		PalmReadingsTotal:      u.PalmTotal,
		PalmReadingsCompleted:  u.PalmCompleted,
		PalmReadingsFailed:     u.PalmFailed,
		PalmReadingsProcessing: u.PalmProcessing,
		PalmSuccessRate:        Percent(u.PalmCompleted, u.PalmCompleted+u.PalmFailed),
		ChatSessions:           u.ChatSessions,
		ChatMessagesToday:      u.ChatMessagesToday,
		AstroProfiles:          u.AstroProfiles,
	}
}

func feedbackMetrics(f FeedbackCounts) FeedbackMetrics {
	dist := make(map[int]int64, 5)
	for r := 1; r <= 5; r++ {
		dist[r] = f.ByRating[r]
	}
	byCategory := f.ByCategory
	if byCategory == nil {
		byCategory = map[string]int64{}
	}
	return FeedbackMetrics{
		TotalFeedback:      f.Total,
		PendingFeedback:    f.Pending,
		AverageRating:      round2(f.AverageRating),
		ByCategory:         byCategory,
		RatingDistribution: dist,
	}
}

// Growth is the change from last to this as a percentage; 0 when last is 0.
func Growth(this, last int64) float64 {
	if last == 0 {
		return 0
	}
	return round2(float64(this-last) / float64(last) * 100)
}

// Percent is part/total as a percentage; 0 when total is 0.
func Percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
