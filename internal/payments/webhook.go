package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/aurapalm/aura/internal/metrics"
	inats "github.com/aurapalm/aura/internal/nats"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventCheckoutExpired   = "checkout.session.expired"
	eventPaymentFailed     = "payment_intent.payment_failed"
)

// SignatureError is returned when the Stripe-Signature header does not verify.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return "webhook signature verification failed: " + e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// HandleStripeWebhook verifies and applies one webhook delivery. Replayed
// event ids are accepted and ignored.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrWebhookUnavailable
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		return &SignatureError{Err: err}
	}
	eventType := string(event.Type)

	if s.seen.Seen(event.ID) {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "duplicate").Inc()
		return nil
	}

	transition, err := transitionFor(event)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "malformed").Inc()
		return err
	}

	applied, order, err := s.repo.ApplyWebhookEvent(ctx, event.ID, eventType, transition)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}
	s.seen.Add(event.ID)

	if !applied {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "duplicate").Inc()
		return nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, "applied").Inc()

	if transition != nil && order == nil {
		slog.Warn("webhook event matched no updatable order", "event_id", event.ID, "type", eventType)
		return nil
	}
	if order != nil {
		switch order.Status {
		case OrderPaid:
			s.paid(ctx, order)
		case OrderFailed, OrderExpired:
			metrics.PaymentsTotal.WithLabelValues(string(order.Provider), string(order.Status)).Inc()
			inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventPaymentFailed, order.UserID, "order", order.ID.String(),
				map[string]any{"status": string(order.Status), "stripeEvent": eventType}))
		}
	}
	return nil
}

// transitionFor maps an event to an order transition. Unhandled event types
// map to nil and are only recorded.
func transitionFor(event stripe.Event) (*OrderTransition, error) {
	switch string(event.Type) {
	case eventCheckoutCompleted, eventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decoding checkout session: %w", err)
		}
		if string(event.Type) == eventCheckoutExpired {
			return &OrderTransition{ProviderOrderID: sess.ID, Status: OrderExpired}, nil
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return nil, nil
		}
		t := &OrderTransition{ProviderOrderID: sess.ID, Status: OrderPaid}
		if sess.PaymentIntent != nil {
			t.PaymentID = sess.PaymentIntent.ID
		}
		return t, nil

	case eventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decoding payment intent: %w", err)
		}
		orderID, err := uuid.Parse(pi.Metadata["order_id"])
		if err != nil {
			return nil, nil
		}
		return &OrderTransition{OrderID: &orderID, Status: OrderFailed, PaymentID: pi.ID}, nil
	}
	return nil, nil
}
