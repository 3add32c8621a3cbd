package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireAdmin ensures the authenticated user carries the admin flag.
// It must run after AuthMiddleware: a request that never authenticated is
// rejected there with 401, so a 403 here always means a valid credential
// with insufficient privilege.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isAdmin, ok := GetIsAdmin(r.Context())
			if !ok {
				logger.Warn("Admin flag not found in context")
				respondWithErrorKind(w, http.StatusForbidden, KindForbidden, "admin privileges required")
				return
			}

			if !isAdmin {
				logger.Warn("Non-admin user attempted to access admin endpoint",
					zap.String("path", r.URL.Path),
				)
				respondWithErrorKind(w, http.StatusForbidden, KindForbidden, "admin privileges required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
