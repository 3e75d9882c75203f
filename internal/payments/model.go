package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type CouponType string

const (
	CouponFree     CouponType = "free"
	CouponDiscount CouponType = "discount"
)

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// CouponValidation is one row returned by the validate_coupon routine.
type CouponValidation struct {
	Valid        bool
	CouponID     *uuid.UUID
	Code         string
	Type         CouponType
	DiscountKind DiscountKind
	Value        float64
	Currency     string
	Message      string
}

// CouponSummary is the coupon as shown to clients.
type CouponSummary struct {
	Code          string       `json:"code,omitempty"`
	Type          CouponType   `json:"type"`
	DiscountType  DiscountKind `json:"discountType,omitempty"`
	DiscountValue float64      `json:"discountValue,omitempty"`
	Currency      string       `json:"currency,omitempty"`
}

func summarize(c *CouponValidation) *CouponSummary {
	if c == nil {
		return nil
	}
	return &CouponSummary{
		Code:          c.Code,
		Type:          c.Type,
		DiscountType:  c.DiscountKind,
		DiscountValue: c.Value,
		Currency:      c.Currency,
	}
}

type Provider string

const (
	ProviderRazorpay Provider = "razorpay"
	ProviderStripe   Provider = "stripe"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
	OrderExpired OrderStatus = "expired"
)

// Order matches the orders table schema.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"userId"`
	Provider        Provider    `json:"provider"`
	ProviderOrderID string      `json:"providerOrderId"`
	Amount          int64       `json:"amount"`
	OriginalAmount  int64       `json:"originalAmount"`
	DiscountAmount  int64       `json:"discountAmount"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	CouponID        *uuid.UUID  `json:"couponId,omitempty"`
	PaymentID       *string     `json:"paymentId,omitempty"`
	Country         string      `json:"country,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	PaidAt          *time.Time  `json:"paidAt,omitempty"`
}

// OrderTransition moves one order to a new status. The order is located by
// ProviderOrderID, or by OrderID when set.
type OrderTransition struct {
	ProviderOrderID string
	OrderID         *uuid.UUID
	Status          OrderStatus
	PaymentID       string
}

type CreatePaymentRequest struct {
	Country    string `json:"country" validate:"omitempty,len=2,alpha"`
	CouponCode string `json:"couponCode" validate:"omitempty,max=64"`
}

type ValidateCouponRequest struct {
	CouponCode  string `json:"couponCode"`
	UserCountry string `json:"userCountry"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

type PaymentResponse struct {
	OrderID  string         `json:"orderId"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	KeyID    string         `json:"keyId"`
	Coupon   *CouponSummary `json:"coupon"`
	Pricing  Quote          `json:"pricing"`
}

type FreeResponse struct {
	Success bool          `json:"success"`
	Coupon  CouponSummary `json:"coupon"`
}

type CheckoutResponse struct {
	SessionID string         `json:"sessionId"`
	URL       string         `json:"url"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Coupon    *CouponSummary `json:"coupon"`
	Pricing   Quote          `json:"pricing"`
}

// PaymentResult carries exactly one of Order, Checkout or Free.
type PaymentResult struct {
	Order    *PaymentResponse
	Checkout *CheckoutResponse
	Free     *FreeResponse
}

type ValidateCouponResponse struct {
	IsValid  bool           `json:"isValid"`
	Coupon   *CouponSummary `json:"coupon,omitempty"`
	Discount *Quote         `json:"discount,omitempty"`
	Error    string         `json:"error,omitempty"`
}

var (
	ErrAlreadyPaid        = errors.New("payment already completed")
	ErrCurrencyMismatch   = errors.New("coupon currency does not match order currency")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCheckoutDisabled   = errors.New("card checkout is not configured")
	ErrWebhookUnavailable = errors.New("webhook is not configured")
)

// CouponError is a coupon rejected by validation; Message is user-facing.
type CouponError struct {
	Message string
}

func (e *CouponError) Error() string {
	return e.Message
}
