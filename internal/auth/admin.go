package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurapalm/aura/internal/api"
)

// AdminChecker looks up a caller's email in the admin allow-list.
type AdminChecker interface {
	IsActiveAdmin(ctx context.Context, email string) (bool, error)
}

// AdminRepository reads the admin_users allow-list.
type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) IsActiveAdmin(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_users WHERE lower(email) = lower($1) AND is_active = true)`,
		email,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking admin allow-list: %w", err)
	}
	return ok, nil
}

// RequireAdmin must run after Middleware. Valid users that are not active
// admins get 403.
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserClaims(r.Context())
			if claims == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}
			email := strings.TrimSpace(claims.Email)
			if email == "" {
				api.HandleError(w, api.ErrNotAdmin)
				return
			}

			ok, err := checker.IsActiveAdmin(r.Context(), email)
			if err != nil {
				slog.Error("checking admin access", "error", err)
				api.HandleError(w, api.ErrInternalServer)
				return
			}
			if !ok {
				slog.Warn("admin access denied", "user_id", claims.UserID(), "path", r.URL.Path)
				api.HandleError(w, api.ErrNotAdmin)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
