package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/metrics"
	inats "github.com/aurapalm/aura/internal/nats"
)

type Service struct {
	repo          Repository
	pricing       Pricing
	orders        OrderProvider
	checkout      CheckoutProvider
	webhookSecret string
	seen          *EventSet
	events        inats.EventPublisher
}

type ServiceDeps struct {
	Repo          Repository
	Pricing       Pricing
	Orders        OrderProvider
	Checkout      CheckoutProvider // nil disables card checkout
	WebhookSecret string
	Events        inats.EventPublisher
}

func NewService(d ServiceDeps) *Service {
	events := d.Events
	if events == nil {
		events = inats.NopPublisher{}
	}
	return &Service{
		repo:          d.Repo,
		pricing:       d.Pricing,
		orders:        d.Orders,
		checkout:      d.Checkout,
		webhookSecret: d.WebhookSecret,
		seen:          NewEventSet(0),
		events:        events,
	}
}

type quoted struct {
	country string
	quote   Quote
	coupon  *CouponValidation
}

// quote prices the purchase for a country and optional coupon code.
func (s *Service) quote(ctx context.Context, userID uuid.UUID, country, code string) (*quoted, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = s.pricing.homeCountry
	}
	price := s.pricing.For(country)

	code = strings.TrimSpace(code)
	if code == "" {
		q, _ := ApplyCoupon(price, nil)
		return &quoted{country: country, quote: q}, nil
	}

	c, err := s.repo.ValidateCoupon(ctx, code, userID, country)
	if err != nil {
		return nil, err
	}
	if !c.Valid {
		msg := c.Message
		if msg == "" {
			msg = "invalid coupon code"
		}
		return nil, &CouponError{Message: msg}
	}
	if c.Code == "" {
		c.Code = strings.ToUpper(code)
	}

	q, err := ApplyCoupon(price, c)
	if err != nil {
		return nil, err
	}
	return &quoted{country: country, quote: q, coupon: c}, nil
}

// ValidateCoupon never fails: every problem becomes an invalid result.
func (s *Service) ValidateCoupon(ctx context.Context, userID uuid.UUID, req *ValidateCouponRequest) *ValidateCouponResponse {
	if strings.TrimSpace(req.CouponCode) == "" {
		return &ValidateCouponResponse{IsValid: false, Error: "coupon code is required"}
	}

	q, err := s.quote(ctx, userID, req.UserCountry, req.CouponCode)
	if err != nil {
		var ce *CouponError
		switch {
		case errors.As(err, &ce):
			return &ValidateCouponResponse{IsValid: false, Error: ce.Message}
		case errors.Is(err, ErrCurrencyMismatch):
			return &ValidateCouponResponse{IsValid: false, Error: err.Error()}
		default:
			slog.Error("validating coupon", "error", err, "user_id", userID)
			return &ValidateCouponResponse{IsValid: false, Error: "failed to validate coupon"}
		}
	}

	return &ValidateCouponResponse{
		IsValid:  true,
		Coupon:   summarize(q.coupon),
		Discount: &q.quote,
	}
}

// CreatePayment creates a Razorpay order, or completes the purchase directly
// when a coupon covers the whole price.
func (s *Service) CreatePayment(ctx context.Context, userID uuid.UUID, req *CreatePaymentRequest) (*PaymentResult, error) {
	q, err := s.prepare(ctx, userID, req.Country, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if q.quote.Free() {
		return s.redeemFree(ctx, userID, q)
	}

	orderID := uuid.New()
	providerID, err := s.orders.CreateOrder(ctx, q.quote.FinalAmount, q.quote.Currency, orderID.String(), map[string]string{
		"user_id":  userID.String(),
		"order_id": orderID.String(),
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(string(ProviderRazorpay), "error").Inc()
		return nil, err
	}

	order := s.newOrder(orderID, userID, ProviderRazorpay, providerID, q)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	s.countCouponUse(ctx, q.coupon)
	metrics.PaymentsTotal.WithLabelValues(string(ProviderRazorpay), "created").Inc()

	return &PaymentResult{Order: &PaymentResponse{
		OrderID:  providerID,
		Amount:   q.quote.FinalAmount,
		Currency: q.quote.Currency,
		KeyID:    s.orders.KeyID(),
		Coupon:   summarize(q.coupon),
		Pricing:  q.quote,
	}}, nil
}

// CreateCheckoutSession is the card-checkout counterpart of CreatePayment.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, email string, req *CreatePaymentRequest) (*PaymentResult, error) {
	if s.checkout == nil {
		return nil, ErrCheckoutDisabled
	}

	q, err := s.prepare(ctx, userID, req.Country, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if q.quote.Free() {
		return s.redeemFree(ctx, userID, q)
	}

	orderID := uuid.New()
	sess, err := s.checkout.CreateCheckoutSession(ctx, CheckoutRequest{
		OrderID:  orderID.String(),
		UserID:   userID.String(),
		Email:    email,
		Amount:   q.quote.FinalAmount,
		Currency: q.quote.Currency,
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(string(ProviderStripe), "error").Inc()
		return nil, err
	}

	order := s.newOrder(orderID, userID, ProviderStripe, sess.ID, q)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	s.countCouponUse(ctx, q.coupon)
	metrics.PaymentsTotal.WithLabelValues(string(ProviderStripe), "created").Inc()

	return &PaymentResult{Checkout: &CheckoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
		Amount:    q.quote.FinalAmount,
		Currency:  q.quote.Currency,
		Coupon:    summarize(q.coupon),
		Pricing:   q.quote,
	}}, nil
}

// VerifyPayment completes a Razorpay checkout from the client callback.
func (s *Service) VerifyPayment(ctx context.Context, userID uuid.UUID, req *VerifyPaymentRequest) (*Order, error) {
	if !s.orders.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		metrics.PaymentsTotal.WithLabelValues(string(ProviderRazorpay), "bad_signature").Inc()
		return nil, ErrInvalidSignature
	}

	existing, err := s.repo.GetOrderByProviderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if existing.Status == OrderPaid {
		return existing, nil
	}

	order, err := s.repo.TransitionOrder(ctx, OrderTransition{
		ProviderOrderID: req.OrderID,
		Status:          OrderPaid,
		PaymentID:       req.PaymentID,
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		// Lost a race with another completion; report the stored state.
		return s.repo.GetOrderByProviderID(ctx, req.OrderID)
	}

	s.paid(ctx, order)
	return order, nil
}

// prepare rejects users who already paid and prices the purchase.
func (s *Service) prepare(ctx context.Context, userID uuid.UUID, country, code string) (*quoted, error) {
	paid, err := s.repo.HasPaid(ctx, userID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrAlreadyPaid
	}
	return s.quote(ctx, userID, country, code)
}

func (s *Service) redeemFree(ctx context.Context, userID uuid.UUID, q *quoted) (*PaymentResult, error) {
	if q.coupon == nil || q.coupon.CouponID == nil {
		return nil, fmt.Errorf("free purchase without a coupon id")
	}
	if err := s.repo.RedeemFree(ctx, userID, *q.coupon.CouponID, q.quote.OriginalAmount); err != nil {
		return nil, err
	}
	s.countCouponUse(ctx, q.coupon)
	metrics.PaymentsTotal.WithLabelValues("coupon", "free").Inc()

	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventCouponRedeemed, userID, "coupon", q.coupon.CouponID.String(),
		map[string]any{"code": q.coupon.Code, "free": true}))
	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventPaymentCompleted, userID, "coupon", q.coupon.CouponID.String(),
		map[string]any{"amount": 0, "currency": q.quote.Currency}))

	return &PaymentResult{Free: &FreeResponse{Success: true, Coupon: CouponSummary{Code: q.coupon.Code, Type: CouponFree}}}, nil
}

func (s *Service) newOrder(id, userID uuid.UUID, provider Provider, providerID string, q *quoted) *Order {
	o := &Order{
		ID:              id,
		UserID:          userID,
		Provider:        provider,
		ProviderOrderID: providerID,
		Amount:          q.quote.FinalAmount,
		OriginalAmount:  q.quote.OriginalAmount,
		DiscountAmount:  q.quote.DiscountAmount,
		Currency:        q.quote.Currency,
		Status:          OrderPending,
		Country:         q.country,
	}
	if q.coupon != nil {
		o.CouponID = q.coupon.CouponID
	}
	return o
}

// countCouponUse is best-effort: a failed increment does not undo the order.
func (s *Service) countCouponUse(ctx context.Context, c *CouponValidation) {
	if c == nil || c.CouponID == nil {
		return
	}
	if err := s.repo.IncrementCouponUsage(ctx, *c.CouponID); err != nil {
		slog.Error("incrementing coupon usage", "error", err, "coupon_id", *c.CouponID)
	}
}

func (s *Service) paid(ctx context.Context, o *Order) {
	metrics.PaymentsTotal.WithLabelValues(string(o.Provider), "paid").Inc()
	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventPaymentCompleted, o.UserID, "order", o.ID.String(),
		map[string]any{"amount": o.Amount, "currency": o.Currency, "provider": string(o.Provider)}))
}
