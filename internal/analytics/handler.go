package analytics

import (
	"log/slog"
	"net/http"

	"github.com/aurapalm/aura/internal/api"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get handles GET admin-analytics. ?refresh=true skips the cache.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	a, err := h.svc.Get(r.Context(), refresh)
	if err != nil {
		slog.Error("computing analytics", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"analytics": a})
}
