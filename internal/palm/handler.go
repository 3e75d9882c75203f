package palm

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

// Generate handles POST generate-palm-reading.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	reading, err := h.svc.Generate(r.Context(), userID, &req)
	if err != nil {
		var ae *AnalysisError
		switch {
		case errors.Is(err, ErrInProgress), errors.Is(err, ErrAlreadyCompleted):
			api.HandleError(w, api.NewConflictError(err.Error()))
		case errors.As(err, &ae):
			slog.Error("validating palm reading", "error", err, "user_id", userID)
			api.JSONErrorDetail(w, http.StatusInternalServerError, ae.Reason, map[string]any{
				"missingFields": ae.MissingFields,
			})
		default:
			slog.Error("generating palm reading", "error", err, "user_id", userID)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, reading)
}

// Get handles GET get-palm-reading.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	reading, err := h.svc.Reading(r.Context(), userID)
	if err != nil {
		slog.Error("fetching palm reading", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, reading)
}
