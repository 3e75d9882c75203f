package analytics

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserCounts and the other *Counts types are the raw query results the
// service turns into metrics.
type UserCounts struct {
	Total, ThisMonth, LastMonth, Paid, ChattedToday int64
}

type RevenueCounts struct {
	Total, ThisMonth, LastMonth           int64
	Paid, PaidInCurrency, Pending, Failed int64
	CouponRedemptions, TotalDiscount      int64
}

type UsageCounts struct {
	PalmTotal, PalmCompleted, PalmFailed, PalmProcessing int64
	ChatSessions, ChatMessagesToday, AstroProfiles       int64
}

type FeedbackCounts struct {
	Total, Pending int64
	AverageRating  float64
	ByCategory     map[string]int64
	ByRating       map[int]int64
}

type HealthCounts struct {
	FailedReadings24h, StaleProcessing, StalePendingOrders int64
}

type Repository interface {
	UserCounts(ctx context.Context, p Period) (UserCounts, error)
	RevenueCounts(ctx context.Context, p Period, currency string) (RevenueCounts, error)
	UsageCounts(ctx context.Context, p Period) (UsageCounts, error)
	FeedbackCounts(ctx context.Context) (FeedbackCounts, error)
	HealthCounts(ctx context.Context, p Period) (HealthCounts, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// counter runs a list of single-value queries and stops at the first error.
// Each query sees its own snapshot.
type counter struct {
	ctx  context.Context
	pool *pgxpool.Pool
	err  error
}

func (c *counter) scan(dst *int64, query string, args ...any) {
	if c.err != nil {
		return
	}
	if err := c.pool.QueryRow(c.ctx, query, args...).Scan(dst); err != nil {
		c.err = fmt.Errorf("counting %q: %w", query, err)
	}
}

func (r *postgresRepository) UserCounts(ctx context.Context, p Period) (UserCounts, error) {
	var u UserCounts
	c := &counter{ctx: ctx, pool: r.pool}
	c.scan(&u.Total, `SELECT COUNT(*) FROM profiles`)
	c.scan(&u.ThisMonth, `SELECT COUNT(*) FROM profiles WHERE created_at >= $1`, p.StartOfMonth)
	c.scan(&u.LastMonth, `SELECT COUNT(*) FROM profiles WHERE created_at >= $1 AND created_at < $2`,
		p.StartOfLastMonth, p.StartOfMonth)
	c.scan(&u.Paid, `SELECT COUNT(*) FROM profiles WHERE has_paid`)
	c.scan(&u.ChattedToday, `SELECT COUNT(*) FROM user_message_limits WHERE date = $1::date AND message_count > 0`,
		p.StartOfDay)
	return u, c.err
}

func (r *postgresRepository) RevenueCounts(ctx context.Context, p Period, currency string) (RevenueCounts, error) {
	var rc RevenueCounts
	c := &counter{ctx: ctx, pool: r.pool}
	c.scan(&rc.Total, `SELECT COALESCE(SUM(amount), 0) FROM orders WHERE status = 'paid' AND currency = $1`, currency)
	c.scan(&rc.ThisMonth, `SELECT COALESCE(SUM(amount), 0) FROM orders
		WHERE status = 'paid' AND currency = $1 AND paid_at >= $2`, currency, p.StartOfMonth)
	c.scan(&rc.LastMonth, `SELECT COALESCE(SUM(amount), 0) FROM orders
		WHERE status = 'paid' AND currency = $1 AND paid_at >= $2 AND paid_at < $3`,
		currency, p.StartOfLastMonth, p.StartOfMonth)
	c.scan(&rc.Paid, `SELECT COUNT(*) FROM orders WHERE status = 'paid'`)
	c.scan(&rc.PaidInCurrency, `SELECT COUNT(*) FROM orders WHERE status = 'paid' AND currency = $1`, currency)
	c.scan(&rc.Pending, `SELECT COUNT(*) FROM orders WHERE status = 'pending'`)
	c.scan(&rc.Failed, `SELECT COUNT(*) FROM orders WHERE status IN ('failed', 'expired')`)
	c.scan(&rc.CouponRedemptions, `SELECT COUNT(*) FROM coupon_usage`)
	c.scan(&rc.TotalDiscount, `SELECT COALESCE(SUM(discount_amount), 0) FROM orders
		WHERE status = 'paid' AND currency = $1`, currency)
	return rc, c.err
}

func (r *postgresRepository) UsageCounts(ctx context.Context, p Period) (UsageCounts, error) {
	var u UsageCounts
	c := &counter{ctx: ctx, pool: r.pool}
	c.scan(&u.PalmTotal, `SELECT COUNT(*) FROM palm_profiles`)
	c.scan(&u.PalmCompleted, `SELECT COUNT(*) FROM palm_profiles WHERE status = 'completed'`)
	c.scan(&u.PalmFailed, `SELECT COUNT(*) FROM palm_profiles WHERE status = 'failed'`)
	c.scan(&u.PalmProcessing, `SELECT COUNT(*) FROM palm_profiles WHERE status = 'processing'`)
	c.scan(&u.ChatSessions, `SELECT COUNT(*) FROM chat_sessions`)
	c.scan(&u.ChatMessagesToday, `SELECT COALESCE(SUM(message_count), 0) FROM user_message_limits WHERE date = $1::date`,
		p.StartOfDay)
	c.scan(&u.AstroProfiles, `SELECT COUNT(*) FROM astro_profiles`)
	return u, c.err
}

func (r *postgresRepository) FeedbackCounts(ctx context.Context) (FeedbackCounts, error) {
	f := FeedbackCounts{ByCategory: map[string]int64{}, ByRating: map[int]int64{}}
	c := &counter{ctx: ctx, pool: r.pool}
	c.scan(&f.Total, `SELECT COUNT(*) FROM feedback`)
	c.scan(&f.Pending, `SELECT COUNT(*) FROM feedback WHERE status = 'pending'`)
	if c.err != nil {
		return f, c.err
	}

	if err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8 FROM feedback WHERE rating IS NOT NULL`).Scan(&f.AverageRating); err != nil {
		return f, fmt.Errorf("averaging feedback rating: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM feedback GROUP BY category`)
	if err != nil {
		return f, fmt.Errorf("grouping feedback by category: %w", err)
	}
	var (
		category string
		n        int64
	)
	_, err = pgx.ForEachRow(rows, []any{&category, &n}, func() error {
		f.ByCategory[category] = n
		return nil
	})
	if err != nil {
		return f, fmt.Errorf("scanning feedback categories: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT rating, COUNT(*) FROM feedback WHERE rating IS NOT NULL GROUP BY rating`)
	if err != nil {
		return f, fmt.Errorf("grouping feedback by rating: %w", err)
	}
	var rating int
	_, err = pgx.ForEachRow(rows, []any{&rating, &n}, func() error {
		f.ByRating[rating] = n
		return nil
	})
	if err != nil {
		return f, fmt.Errorf("scanning feedback ratings: %w", err)
	}
	return f, nil
}

func (r *postgresRepository) HealthCounts(ctx context.Context, p Period) (HealthCounts, error) {
	var h HealthCounts
	c := &counter{ctx: ctx, pool: r.pool}
	c.scan(&h.FailedReadings24h, `SELECT COUNT(*) FROM palm_profiles WHERE status = 'failed' AND updated_at >= $1`,
		p.Now.Add(-failedWindow))
	c.scan(&h.StaleProcessing, `SELECT COUNT(*) FROM palm_profiles WHERE status = 'processing' AND updated_at < $1`,
		p.Now.Add(-staleProcessingAfter))
	c.scan(&h.StalePendingOrders, `SELECT COUNT(*) FROM orders WHERE status = 'pending' AND created_at < $1`,
		p.Now.Add(-stalePendingAfter))
	return h, c.err
}
