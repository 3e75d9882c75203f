//go:build integration

package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapalm/aura/internal/database/dbtest"
)

func seedCoupon(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(), sql+` RETURNING id`, args...).Scan(&id))
	return id
}

func TestPostgresRepository(t *testing.T) {
	pool := dbtest.Start(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	freeID := seedCoupon(t, pool,
		`INSERT INTO coupons (code, coupon_type) VALUES ('FREEPALM', 'free')`)
	indiaID := seedCoupon(t, pool,
		`INSERT INTO coupons (code, coupon_type, discount_type, discount_value, allowed_countries)
		 VALUES ('INDIA20', 'discount', 'percentage', 20, ARRAY['IN'])`)
	seedCoupon(t, pool,
		`INSERT INTO coupons (code, coupon_type, discount_type, discount_value, is_active)
		 VALUES ('OLD', 'discount', 'percentage', 10, false)`)
	seedCoupon(t, pool,
		`INSERT INTO coupons (code, coupon_type, discount_type, discount_value, valid_until)
		 VALUES ('GONE', 'discount', 'percentage', 10, NOW() - INTERVAL '1 day')`)
	seedCoupon(t, pool,
		`INSERT INTO coupons (code, coupon_type, discount_type, discount_value, max_uses, used_count)
		 VALUES ('FULL', 'discount', 'percentage', 10, 5, 5)`)

	t.Run("validate_coupon outcomes", func(t *testing.T) {
		user := uuid.New()
		cases := []struct {
			code, country, message string
			valid                  bool
		}{
			{"nope", "IN", "Invalid coupon code", false},
			{"old", "IN", "This coupon is no longer active", false},
			{"GONE", "IN", "This coupon has expired", false},
			{"FULL", "IN", "This coupon has reached its usage limit", false},
			{"INDIA20", "US", "This coupon is not available in your country", false},
			{" india20 ", "in", "Coupon applied", true},
		}
		for _, tc := range cases {
			v, err := repo.ValidateCoupon(ctx, tc.code, user, tc.country)
			require.NoError(t, err, tc.code)
			assert.Equal(t, tc.valid, v.Valid, tc.code)
			assert.Equal(t, tc.message, v.Message, tc.code)
		}

		v, err := repo.ValidateCoupon(ctx, "INDIA20", user, "IN")
		require.NoError(t, err)
		assert.Equal(t, CouponDiscount, v.Type)
		assert.Equal(t, DiscountPercentage, v.DiscountKind)
		assert.InDelta(t, 20.0, v.Value, 0.001)
	})

	t.Run("free redemption marks paid and blocks reuse", func(t *testing.T) {
		user := uuid.New()
		require.NoError(t, repo.RedeemFree(ctx, user, freeID, 19900))
		require.NoError(t, repo.IncrementCouponUsage(ctx, freeID))

		paid, err := repo.HasPaid(ctx, user)
		require.NoError(t, err)
		assert.True(t, paid)

		var original, discount, final int64
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT original_amount, discount_amount, final_amount FROM coupon_usage WHERE user_id = $1`, user,
		).Scan(&original, &discount, &final))
		assert.Equal(t, int64(19900), original)
		assert.Equal(t, int64(19900), discount)
		assert.Equal(t, int64(0), final)

		v, err := repo.ValidateCoupon(ctx, "FREEPALM", user, "IN")
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, "You have already used this coupon", v.Message)
	})

	t.Run("discounted order stores usage amounts", func(t *testing.T) {
		order := &Order{
			ID: uuid.New(), UserID: uuid.New(), Provider: ProviderRazorpay, ProviderOrderID: "order_" + uuid.NewString(),
			Amount: 15920, OriginalAmount: 19900, DiscountAmount: 3980, Currency: "INR", Status: OrderPending,
			CouponID: &indiaID, Country: "IN",
		}
		require.NoError(t, repo.CreateOrder(ctx, order))

		var original, discount, final int64
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT original_amount, discount_amount, final_amount FROM coupon_usage WHERE order_id = $1`, order.ID,
		).Scan(&original, &discount, &final))
		assert.Equal(t, []int64{19900, 3980, 15920}, []int64{original, discount, final})
	})

	t.Run("webhook events apply once", func(t *testing.T) {
		user := uuid.New()
		order := &Order{
			ID: uuid.New(), UserID: user, Provider: ProviderStripe, ProviderOrderID: "cs_test_" + uuid.NewString(),
			Amount: 499, OriginalAmount: 499, Currency: "USD", Status: OrderPending, Country: "US",
		}
		require.NoError(t, repo.CreateOrder(ctx, order))

		tr := &OrderTransition{ProviderOrderID: order.ProviderOrderID, Status: OrderPaid, PaymentID: "pi_1"}
		applied, got, err := repo.ApplyWebhookEvent(ctx, "evt_1", "checkout.session.completed", tr)
		require.NoError(t, err)
		assert.True(t, applied)
		require.NotNil(t, got)
		assert.Equal(t, OrderPaid, got.Status)
		require.NotNil(t, got.PaidAt)

		applied, got, err = repo.ApplyWebhookEvent(ctx, "evt_1", "checkout.session.completed", tr)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Nil(t, got)

		paid, err := repo.HasPaid(ctx, user)
		require.NoError(t, err)
		assert.True(t, paid)
	})

	t.Run("paid orders never regress", func(t *testing.T) {
		order := &Order{
			ID: uuid.New(), UserID: uuid.New(), Provider: ProviderRazorpay, ProviderOrderID: "order_" + uuid.NewString(),
			Amount: 19900, OriginalAmount: 19900, Currency: "INR", Status: OrderPending, Country: "IN",
		}
		require.NoError(t, repo.CreateOrder(ctx, order))

		got, err := repo.TransitionOrder(ctx, OrderTransition{ProviderOrderID: order.ProviderOrderID, Status: OrderPaid, PaymentID: "pay_1"})
		require.NoError(t, err)
		require.NotNil(t, got)

		got, err = repo.TransitionOrder(ctx, OrderTransition{ProviderOrderID: order.ProviderOrderID, Status: OrderFailed})
		require.NoError(t, err)
		assert.Nil(t, got)

		stored, err := repo.GetOrderByProviderID(ctx, order.ProviderOrderID)
		require.NoError(t, err)
		assert.Equal(t, OrderPaid, stored.Status)
		require.NotNil(t, stored.PaymentID)
		assert.Equal(t, "pay_1", *stored.PaymentID)
	})

	t.Run("unknown provider order", func(t *testing.T) {
		got, err := repo.GetOrderByProviderID(ctx, "order_missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
