// internal/adapters/in/http/storefront/handler/session_handler.go
package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"koifarm/internal/adapters/in/http/middleware"
	"koifarm/internal/domain/access"
)

// TokenVerifier verifies Firebase ID tokens (*auth.Client satisfies it).
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// RoleLookup resolves the stored role of a user when the token carries no role claim.
type RoleLookup interface {
	RoleByUID(ctx context.Context, uid string) (access.Role, error)
}

// SessionHandler writes and clears the role marker.
//   - POST   /api/auth/session  (Authorization: Bearer <ID_TOKEN>)
//   - DELETE /api/auth/session
type SessionHandler struct {
	Verifier TokenVerifier
	Roles    RoleLookup
	Marker   *middleware.RoleMarker
	Policy   *access.Policy
	Logger   *zap.Logger
}

func (h *SessionHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSignIn(w, r)
	case http.MethodDelete:
		h.handleSignOut(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (h *SessionHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if h.Verifier == nil {
		h.logger().Error("[session_handler] token verifier not initialized")
		writeErr(w, http.StatusServiceUnavailable, "auth not initialized")
		return
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeErr(w, http.StatusUnauthorized, "unauthorized: missing bearer token")
		return
	}
	idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if idToken == "" {
		writeErr(w, http.StatusUnauthorized, "unauthorized: empty bearer token")
		return
	}

	token, err := h.Verifier.VerifyIDToken(r.Context(), idToken)
	if err != nil || token == nil {
		h.logger().Info("[session_handler] invalid token", zap.Error(err))
		writeErr(w, http.StatusUnauthorized, "invalid token")
		return
	}
	uid := strings.TrimSpace(token.UID)
	if uid == "" {
		writeErr(w, http.StatusUnauthorized, "invalid uid in token")
		return
	}

	role := h.resolveRole(r.Context(), uid, token.Claims)
	h.Marker.Write(w, uid, role)

	redirect := h.redirectTarget(r.URL.Query().Get("redirect"), role)

	h.logger().Info("[session_handler] signed in",
		zap.String("uid", uid),
		zap.String("role", role.String()),
		zap.String("redirect", redirect),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"uid":      uid,
		"role":     role,
		"redirect": redirect,
	})
}

func (h *SessionHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	h.Marker.Clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// resolveRole prefers the "role" custom claim, then the stored role.
// A verified user with no back-office role is a customer.
func (h *SessionHandler) resolveRole(ctx context.Context, uid string, claims map[string]interface{}) access.Role {
	if raw, ok := claims["role"].(string); ok {
		if role := access.ResolveRole(raw); role.IsAuthenticated() {
			return role
		}
	}

	if h.Roles != nil {
		role, err := h.Roles.RoleByUID(ctx, uid)
		if err != nil {
			h.logger().Warn("[session_handler] role lookup failed", zap.String("uid", uid), zap.Error(err))
		} else if role.IsAuthenticated() {
			return role
		}
	}
	return access.RoleCustomer
}

// redirectTarget returns the requested local path when the role may open it, else the role home.
func (h *SessionHandler) redirectTarget(requested string, role access.Role) string {
	home := access.RoleHome(role)

	target, ok := sanitizeRedirect(requested)
	if !ok {
		return home
	}
	if d := h.Policy.Evaluate(target, role); d.IsRedirect() {
		return home
	}
	return target
}

// sanitizeRedirect accepts only local absolute paths ("/x"), never "//host" or "scheme:".
func sanitizeRedirect(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return u.RequestURI(), true
}
