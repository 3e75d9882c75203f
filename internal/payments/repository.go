package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	ValidateCoupon(ctx context.Context, code string, userID uuid.UUID, country string) (*CouponValidation, error)
	HasPaid(ctx context.Context, userID uuid.UUID) (bool, error)
	// RedeemFree records a usage row waiving the whole original amount and
	// marks the profile paid.
	RedeemFree(ctx context.Context, userID, couponID uuid.UUID, original int64) error
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error
	// CreateOrder writes the order and, when it carries a coupon, its usage row.
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByProviderID(ctx context.Context, providerOrderID string) (*Order, error)
	// TransitionOrder applies t and, for paid transitions, marks the profile
	// paid. It returns the order, or nil when no order matched or the order
	// was not in a state the transition applies to.
	TransitionOrder(ctx context.Context, t OrderTransition) (*Order, error)
	// ApplyWebhookEvent records eventID and applies t in one transaction.
	// applied is false when the event id was already recorded.
	ApplyWebhookEvent(ctx context.Context, eventID, eventType string, t *OrderTransition) (applied bool, order *Order, err error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) ValidateCoupon(ctx context.Context, code string, userID uuid.UUID, country string) (*CouponValidation, error) {
	query := `SELECT is_valid, coupon_id, code, coupon_type, discount_type, discount_value, currency, message
		FROM validate_coupon($1, $2, $3)`

	var (
		v            CouponValidation
		couponCode   *string
		couponType   *string
		discountType *string
		value        *float64
		currency     *string
		message      *string
	)
	err := r.pool.QueryRow(ctx, query, code, userID, country).Scan(
		&v.Valid, &v.CouponID, &couponCode, &couponType, &discountType, &value, &currency, &message)
	if err != nil {
		return nil, fmt.Errorf("calling validate_coupon: %w", err)
	}

	v.Code = deref(couponCode)
	v.Type = CouponType(deref(couponType))
	v.DiscountKind = DiscountKind(deref(discountType))
	if value != nil {
		v.Value = *value
	}
	v.Currency = deref(currency)
	v.Message = deref(message)
	return &v, nil
}

func (r *postgresRepository) HasPaid(ctx context.Context, userID uuid.UUID) (bool, error) {
	var paid bool
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT has_paid FROM profiles WHERE id = $1), false)`, userID).Scan(&paid)
	if err != nil {
		return false, fmt.Errorf("checking paid flag: %w", err)
	}
	return paid, nil
}

func (r *postgresRepository) RedeemFree(ctx context.Context, userID, couponID uuid.UUID, original int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO coupon_usage (id, coupon_id, user_id, original_amount, discount_amount, final_amount)
			 VALUES ($1, $2, $3, $4, $4, 0)`,
			uuid.New(), couponID, userID, original); err != nil {
			return fmt.Errorf("inserting coupon usage: %w", err)
		}
		return markProfilePaid(ctx, tx, userID)
	})
}

func (r *postgresRepository) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW() WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("incrementing coupon usage: %w", err)
	}
	return nil
}

func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (id, user_id, provider, provider_order_id, amount, original_amount,
			                     discount_amount, currency, status, coupon_id, country)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING created_at, updated_at`,
			o.ID, o.UserID, o.Provider, o.ProviderOrderID, o.Amount, o.OriginalAmount,
			o.DiscountAmount, o.Currency, o.Status, o.CouponID, o.Country,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		if o.CouponID != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO coupon_usage (id, coupon_id, user_id, order_id, original_amount, discount_amount, final_amount)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), *o.CouponID, o.UserID, o.ID, o.OriginalAmount, o.DiscountAmount, o.Amount); err != nil {
				return fmt.Errorf("inserting coupon usage: %w", err)
			}
		}
		return nil
	})
}

const orderColumns = `id, user_id, provider, provider_order_id, amount, original_amount, discount_amount,
	currency, status, coupon_id, payment_id, country, created_at, updated_at, paid_at`

func scanOrder(row pgx.Row) (*Order, error) {
	o := &Order{}
	err := row.Scan(&o.ID, &o.UserID, &o.Provider, &o.ProviderOrderID, &o.Amount, &o.OriginalAmount,
		&o.DiscountAmount, &o.Currency, &o.Status, &o.CouponID, &o.PaymentID, &o.Country,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) GetOrderByProviderID(ctx context.Context, providerOrderID string) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_order_id = $1`, providerOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying order: %w", err)
	}
	return o, nil
}

func (r *postgresRepository) TransitionOrder(ctx context.Context, t OrderTransition) (*Order, error) {
	var order *Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		order, err = transitionOrder(ctx, tx, t)
		return err
	})
	return order, err
}

func (r *postgresRepository) ApplyWebhookEvent(ctx context.Context, eventID, eventType string, t *OrderTransition) (bool, *Order, error) {
	var (
		applied bool
		order   *Order
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO processed_webhook_events (event_id, event_type) VALUES ($1, $2)
			 ON CONFLICT (event_id) DO NOTHING`, eventID, eventType)
		if err != nil {
			return fmt.Errorf("recording webhook event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true

		if t == nil {
			return nil
		}
		order, err = transitionOrder(ctx, tx, *t)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return applied, order, nil
}

// transitionOrder only moves orders forward: pending to anything, and failed
// or expired to paid. Paid orders never change.
func transitionOrder(ctx context.Context, tx pgx.Tx, t OrderTransition) (*Order, error) {
	where := `provider_order_id = $1`
	var key any = t.ProviderOrderID
	if t.OrderID != nil {
		where = `id = $1`
		key = *t.OrderID
	}

	allowed := `status = 'pending'`
	if t.Status == OrderPaid {
		allowed = `status <> 'paid'`
	}

	query := `UPDATE orders
		SET status = $2,
		    payment_id = COALESCE(NULLIF($3, ''), payment_id),
		    paid_at = CASE WHEN $2 = 'paid' THEN NOW() ELSE paid_at END,
		    updated_at = NOW()
		WHERE ` + where + ` AND ` + allowed + `
		RETURNING ` + orderColumns

	order, err := scanOrder(tx.QueryRow(ctx, query, key, t.Status, t.PaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	if t.Status == OrderPaid {
		if err := markProfilePaid(ctx, tx, order.UserID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func markProfilePaid(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO profiles (id, has_paid, paid_at) VALUES ($1, true, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET has_paid = true, paid_at = COALESCE(profiles.paid_at, NOW()), updated_at = NOW()`, userID)
	if err != nil {
		return fmt.Errorf("marking profile paid: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
