package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aurapalm/aura/internal/api"
	"github.com/aurapalm/aura/internal/auth"
)

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

// Complete handles POST chat-completion.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.svc.Complete(r.Context(), userID, &req)
	if err != nil {
		var le *LimitError
		if errors.As(err, &le) {
			api.JSONErrorDetail(w, http.StatusTooManyRequests, api.ErrQuotaExceeded.Message, map[string]any{
				"limitReached": true,
				"currentCount": le.Status.CurrentCount,
				"dailyLimit":   le.Status.DailyLimit,
			})
			return
		}
		slog.Error("completing chat message", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// CheckLimit handles POST check-message-limit.
func (h *Handler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.svc.LimitStatus(r.Context(), userID)
	if err != nil {
		slog.Error("checking message limit", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

// History handles GET chat-history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	msgs, err := h.svc.History(r.Context(), userID)
	if err != nil {
		slog.Error("fetching chat history", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}
