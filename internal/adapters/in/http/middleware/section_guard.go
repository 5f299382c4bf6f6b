// internal/adapters/in/http/middleware/section_guard.go
package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"koifarm/internal/domain/access"
)

// RequireSection is the layout-level gate for a role-scoped section.
//
// It does not trust the request-level gate: the role is re-derived from the
// marker, and anyone outside roles is sent to the login page.
func RequireSection(marker *RoleMarker, loginPath string, logger *zap.Logger, roles ...access.Role) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := append([]access.Role(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := marker.Read(r)
			if !access.Permits(allowed, role) {
				loc := access.LoginURL(loginPath, r.URL.RequestURI())
				logger.Info("[section_guard] redirect to login",
					zap.String("path", r.URL.Path),
					zap.String("role", role.String()),
					zap.String("location", loc),
				)
				http.Redirect(w, r, loc, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}
