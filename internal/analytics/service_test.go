package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	calls    int
	users    UserCounts
	revenue  RevenueCounts
	usage    UsageCounts
	feedback FeedbackCounts
	health   HealthCounts
	err      error
	period   Period
}

func (f *fakeRepo) UserCounts(_ context.Context, p Period) (UserCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.period = p
	return f.users, f.err
}

func (f *fakeRepo) RevenueCounts(context.Context, Period, string) (RevenueCounts, error) {
	return f.revenue, nil
}

func (f *fakeRepo) UsageCounts(context.Context, Period) (UsageCounts, error) {
	return f.usage, nil
}

func (f *fakeRepo) FeedbackCounts(context.Context) (FeedbackCounts, error) {
	return f.feedback, nil
}

func (f *fakeRepo) HealthCounts(context.Context, Period) (HealthCounts, error) {
	return f.health, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func seededRepo() *fakeRepo {
	return &fakeRepo{
		users:   UserCounts{Total: 300, ThisMonth: 45, LastMonth: 30, Paid: 40, ChattedToday: 12},
		revenue: RevenueCounts{Total: 995000, ThisMonth: 199000, LastMonth: 0, Paid: 52, PaidInCurrency: 50, Pending: 3, Failed: 2, CouponRedemptions: 7, TotalDiscount: 19900},
		usage:   UsageCounts{PalmTotal: 60, PalmCompleted: 54, PalmFailed: 5, PalmProcessing: 1, ChatSessions: 33, ChatMessagesToday: 80, AstroProfiles: 70},
		feedback: FeedbackCounts{Total: 9, Pending: 4, AverageRating: 4.3333333,
			ByCategory: map[string]int64{"bug": 2, "general": 7}, ByRating: map[int]int64{5: 5, 4: 2, 3: 2}},
	}
}

func TestCompute(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, Probes{DB: pinger{}}, "INR")
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 18, 30, 0, 0, time.FixedZone("IST", 19800)) }

	a, err := svc.Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), repo.period.StartOfMonth)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), repo.period.StartOfLastMonth)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), repo.period.StartOfDay)

	assert.Equal(t, 50.0, a.UserMetrics.GrowthRate)
	assert.Equal(t, 13.33, a.UserMetrics.ConversionRate)

	assert.Equal(t, "INR", a.RevenueMetrics.Currency)
	assert.Equal(t, 0.0, a.RevenueMetrics.GrowthRate)
	assert.Equal(t, 19900.0, a.RevenueMetrics.AverageOrderValue)

	assert.Equal(t, 91.53, a.ServiceUsage.PalmSuccessRate)

	assert.Equal(t, 4.33, a.FeedbackMetrics.AverageRating)
	assert.Equal(t, map[int]int64{1: 0, 2: 0, 3: 2, 4: 2, 5: 5}, a.FeedbackMetrics.RatingDistribution)

	assert.Equal(t, HealthHealthy, a.SystemHealth.Status)
	assert.True(t, a.SystemHealth.DatabaseReachable)
}

func TestCompute_AggregatorError(t *testing.T) {
	repo := seededRepo()
	repo.err = errors.New("relation does not exist")
	_, err := NewService(repo, nil, Probes{DB: pinger{}}, "INR").Compute(context.Background())
	assert.Error(t, err)
}

func TestGrowthAndPercentGuards(t *testing.T) {
	assert.Equal(t, 0.0, Growth(10, 0))
	assert.Equal(t, -50.0, Growth(5, 10))
	assert.Equal(t, 33.33, Growth(4, 3))
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 66.67, Percent(2, 3))
}

func TestHealthClassification(t *testing.T) {
	ctx := context.Background()

	down := NewService(seededRepo(), nil, Probes{DB: pinger{err: errors.New("refused")}}, "INR")
	a, err := down.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, HealthDown, a.SystemHealth.Status)

	stale := seededRepo()
	stale.health = HealthCounts{StaleProcessing: 2}
	a, err = NewService(stale, nil, Probes{DB: pinger{}}, "INR").Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, HealthDegraded, a.SystemHealth.Status)
	assert.Equal(t, int64(2), a.SystemHealth.StaleProcessing)

	unconfigured := NewService(seededRepo(), nil, Probes{DB: pinger{}}, "INR")
	a, err = unconfigured.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, a.SystemHealth.Status)
	assert.False(t, a.SystemHealth.CacheConfigured)
	assert.False(t, a.SystemHealth.EventBusConfigured)

	busDown := NewService(seededRepo(), nil, Probes{
		DB:       pinger{},
		Cache:    func(context.Context) error { return nil },
		EventBus: func() bool { return false },
	}, "INR")
	a, err = busDown.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, HealthDegraded, a.SystemHealth.Status)
	assert.True(t, a.SystemHealth.CacheConfigured)
	assert.True(t, a.SystemHealth.CacheReachable)
	assert.True(t, a.SystemHealth.EventBusConfigured)
	assert.False(t, a.SystemHealth.EventBusReachable)
}

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestGet_CachesAndRefreshes(t *testing.T) {
	cache, mr := newCache(t)
	repo := seededRepo()
	svc := NewService(repo, cache, Probes{DB: pinger{}}, "INR")
	ctx := context.Background()

	first, err := svc.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.True(t, mr.Exists(cacheKey))
	assert.Equal(t, time.Minute, mr.TTL(cacheKey))

	repo.users.Total = 301
	second, err := svc.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, first.UserMetrics.TotalUsers, second.UserMetrics.TotalUsers)

	refreshed, err := svc.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
	assert.Equal(t, int64(301), refreshed.UserMetrics.TotalUsers)

	mr.FastForward(2 * time.Minute)
	_, err = svc.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestGet_CacheFailureFailsOpen(t *testing.T) {
	cache, mr := newCache(t)
	mr.Close()
	repo := seededRepo()
	svc := NewService(repo, cache, Probes{DB: pinger{}}, "INR")

	a, err := svc.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(300), a.UserMetrics.TotalUsers)
}

func TestGet_CorruptCacheEntry(t *testing.T) {
	cache, mr := newCache(t)
	require.NoError(t, mr.Set(cacheKey, "{not json"))
	repo := seededRepo()

	a, err := NewService(repo, cache, Probes{DB: pinger{}}, "INR").Get(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, int64(300), a.UserMetrics.TotalUsers)
}

func TestHandler(t *testing.T) {
	h := NewHandler(NewService(seededRepo(), nil, Probes{DB: pinger{}}, "INR"))
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/?refresh=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"analytics":{`)
	assert.Contains(t, rec.Body.String(), `"userMetrics"`)
	assert.Contains(t, rec.Body.String(), `"systemHealth"`)
}
