package payments

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aurapalm/aura/internal/api"
	"github.com/aurapalm/aura/internal/auth"
)

const maxWebhookBytes = int64(65536)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// CreatePayment handles POST create-payment.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreatePaymentRequest
	if err := decodeOptional(r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.CreatePayment(r.Context(), userID, &req)
	if err != nil {
		h.handlePaymentError(w, err, "creating payment")
		return
	}
	writeResult(w, result)
}

// CreateCheckoutSession handles POST create-checkout-session.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreatePaymentRequest
	if err := decodeOptional(r, &req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	email := ""
	if claims := auth.GetUserClaims(r.Context()); claims != nil {
		email = claims.Email
	}

	result, err := h.svc.CreateCheckoutSession(r.Context(), userID, email, &req)
	if err != nil {
		h.handlePaymentError(w, err, "creating checkout session")
		return
	}
	writeResult(w, result)
}

// ValidateCoupon handles POST validate-coupon. It always answers 200.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ValidateCouponRequest
	if err := decodeOptional(r, &req); err != nil {
		api.JSON(w, http.StatusOK, &ValidateCouponResponse{IsValid: false, Error: "invalid request body"})
		return
	}

	api.JSON(w, http.StatusOK, h.svc.ValidateCoupon(r.Context(), userID, &req))
}

// VerifyPayment handles POST verify-payment.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	order, err := h.svc.VerifyPayment(r.Context(), userID, &req)
	if err != nil {
		h.handlePaymentError(w, err, "verifying payment")
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"success": order.Status == OrderPaid,
		"orderId": order.ProviderOrderID,
		"status":  order.Status,
	})
}

// StripeWebhook handles POST stripe-webhook. It is not behind bearer auth.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid payload"))
		return
	}

	err = h.svc.HandleStripeWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var se *SignatureError
		switch {
		case errors.As(err, &se):
			slog.Warn("stripe webhook signature failed", "error", err)
			api.HandleError(w, api.NewBadRequestError("signature verification failed"))
		case errors.Is(err, ErrWebhookUnavailable):
			slog.Error("stripe webhook secret missing")
			api.HandleError(w, api.ErrInternalServer)
		default:
			slog.Error("processing stripe webhook", "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handlePaymentError(w http.ResponseWriter, err error, op string) {
	var ce *CouponError
	switch {
	case errors.As(err, &ce):
		api.HandleError(w, api.NewBadRequestError(ce.Message))
	case errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrInvalidSignature):
		api.HandleError(w, api.NewBadRequestError(err.Error()))
	case errors.Is(err, ErrOrderNotFound):
		api.HandleError(w, api.NewNotFoundError(err.Error()))
	default:
		slog.Error(op, "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

func writeResult(w http.ResponseWriter, result *PaymentResult) {
	switch {
	case result.Free != nil:
		api.JSON(w, http.StatusOK, result.Free)
	case result.Checkout != nil:
		api.JSON(w, http.StatusOK, result.Checkout)
	default:
		api.JSON(w, http.StatusOK, result.Order)
	}
}
