package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
)

type RoleStore interface {
	GetRole(ctx context.Context, userID string) (string, error)
}

// RequireRole loads the caller's current role from the store so that a
// demoted account loses access before its token expires.
func RequireRole(roles RoleStore, logger *slog.Logger, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, "authentication required")
				return
			}
			role, err := roles.GetRole(r.Context(), p.UserID)
			if err != nil {
				logger.Error("role lookup failed", "user_id", p.UserID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal_error", "unable to verify role")
				return
			}
			if !slices.Contains(allowed, role) {
				logger.Warn("access denied",
					"security", true,
					"user_id", p.UserID,
					"role", role,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			p.Role = role
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
