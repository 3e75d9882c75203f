package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/api"
)

type contextKey string

const UserClaimsKey contextKey = "user_claims"

// TokenVerifier is satisfied by *Verifier.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Middleware enforces bearer token auth and injects claims into the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, "")
}

// CookieMiddleware is Middleware for browser pages: without an Authorization
// header the token is read from the named cookie.
func CookieMiddleware(verifier TokenVerifier, cookie string) func(http.Handler) http.Handler {
	return authenticate(verifier, cookie)
}

func authenticate(verifier TokenVerifier, cookie string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			var token string
			switch {
			case authHeader != "":
				var ok bool
				token, ok = extractBearerToken(authHeader)
				if !ok {
					api.HandleError(w, api.ErrUnauthorized)
					return
				}
			case cookie != "":
				c, err := r.Cookie(cookie)
				if err != nil || c.Value == "" {
					api.HandleError(w, api.ErrMissingAuthToken)
					return
				}
				token = c.Value
			default:
				api.HandleError(w, api.ErrMissingAuthToken)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("auth failure: token invalid", "path", r.URL.Path, "error", err)
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

func GetUserClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(UserClaimsKey).(*Claims)
	return claims
}

// UserIDFromContext returns the authenticated user's id, or false when the
// request carries no claims or the subject is not a UUID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := GetUserClaims(ctx)
	if claims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
