package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/api"
)

// Lister reads audit entries.
type Lister interface {
	List(ctx context.Context, params ListParams) ([]Entry, int64, error)
}

type Handler struct {
	lister Lister
}

func NewHandler(lister Lister) *Handler {
	return &Handler{lister: lister}
}

// List handles GET admin-audit-log.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := DefaultListParams()
	q := r.URL.Query()
	params.EventType = q.Get("eventType")
	params.Severity = q.Get("severity")
	if v := q.Get("userId"); v != "" {
		uid, err := uuid.Parse(v)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid userId"))
			return
		}
		params.UserID = &uid
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		params.PageSize = v
	}
	params.normalize()

	entries, total, err := h.lister.List(r.Context(), params)
	if err != nil {
		slog.Error("listing audit logs", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"entries":  entries,
		"total":    total,
		"page":     params.Page,
		"pageSize": params.PageSize,
	})
}
