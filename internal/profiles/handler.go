package profiles

import (
	"encoding/json"
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

// Get handles GET get-profile.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	resp, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		slog.Error("getting profile", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// Update handles POST update-profile.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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

	resp, err := h.svc.Update(r.Context(), userID, email, &req)
	if err != nil {
		slog.Error("updating profile", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrPersistence)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// Status handles GET get-profile-status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	resp, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		slog.Error("getting profile status", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}
