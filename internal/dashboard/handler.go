package dashboard

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/aurapalm/aura/internal/analytics"
	"github.com/aurapalm/aura/internal/api"
)

//go:embed dashboard.html
var pageSource string

var pageTemplate = template.Must(template.New("dashboard").Parse(pageSource))

// Source provides the analytics to render.
type Source interface {
	Get(ctx context.Context, refresh bool) (*analytics.Analytics, error)
}

type Handler struct {
	src Source
}

func NewHandler(src Source) *Handler {
	return &Handler{src: src}
}

// Page handles GET /admin/dashboard.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	a, err := h.src.Get(r.Context(), r.URL.Query().Get("refresh") == "true")
	if err != nil {
		slog.Error("loading dashboard analytics", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, BuildPage(a)); err != nil {
		slog.Error("rendering dashboard", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	// The page carries only inline styles; the global policy blocks them.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
