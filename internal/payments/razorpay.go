package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/aurapalm/aura/internal/config"
)

// OrderProvider creates provider-side orders and verifies checkout callbacks.
type OrderProvider interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type Razorpay struct {
	client    *razorpay.Client
	keyID     string
	keySecret string
}

func NewRazorpay(cfg config.RazorpayConfig) *Razorpay {
	return &Razorpay{
		client:    razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
	}
}

func (r *Razorpay) KeyID() string {
	return r.keyID
}

// CreateOrder returns the Razorpay order id. The SDK takes no context, so
// cancellation only applies before the call starts.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}
	resp, err := r.client.Order.Create(body, nil)
	if err != nil {
		return "", fmt.Errorf("creating razorpay order: %w", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", fmt.Errorf("creating razorpay order: response has no id")
	}
	return id, nil
}

// VerifySignature checks the checkout callback signature,
// hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return verifyRazorpaySignature(r.keySecret, orderID, paymentID, signature)
}

// utils.VerifyPaymentSignature compares with !=; this one is constant time.
func verifyRazorpaySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
