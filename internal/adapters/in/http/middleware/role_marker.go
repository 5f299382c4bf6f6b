// internal/adapters/in/http/middleware/role_marker.go
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"koifarm/internal/domain/access"
)

// DefaultRoleCookie is the cookie carrying the role marker written at login.
const DefaultRoleCookie = "koi_role"

// DefaultMarkerTTL bounds how long a login marker stays valid.
const DefaultMarkerTTL = 7 * 24 * time.Hour

// RoleMarker reads and writes the trust-boundary role signal.
//
// Value format:
//   - no secret: "<role>"
//   - secret:    HS256 JWT {role, sub=<uid>, iat, exp}
//
// Anything that does not verify, has expired, or carries no subject reads as guest.
type RoleMarker struct {
	Name   string
	Secret []byte
	Secure bool
	MaxAge time.Duration

	now func() time.Time
}

type markerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (m *RoleMarker) cookieName() string {
	if m == nil || strings.TrimSpace(m.Name) == "" {
		return DefaultRoleCookie
	}
	return m.Name
}

func (m *RoleMarker) ttl() time.Duration {
	if m == nil || m.MaxAge <= 0 {
		return DefaultMarkerTTL
	}
	return m.MaxAge
}

func (m *RoleMarker) clock() time.Time {
	if m != nil && m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *RoleMarker) signed() bool {
	return m != nil && len(m.Secret) > 0
}

// Read returns the role carried by the request (guest when absent or invalid).
func (m *RoleMarker) Read(r *http.Request) access.Role {
	c, err := r.Cookie(m.cookieName())
	if err != nil {
		return access.RoleGuest
	}
	return m.Decode(c.Value)
}

// Decode verifies a raw marker value and resolves its role.
func (m *RoleMarker) Decode(raw string) access.Role {
	_, role := m.Identity(raw)
	return role
}

// Identity verifies a raw marker value and returns the user it was issued to
// along with its role. Unsigned markers carry no user.
func (m *RoleMarker) Identity(raw string) (uid string, role access.Role) {
	raw = strings.TrimSpace(raw)
	if !m.signed() {
		return "", access.ResolveRole(raw)
	}
	if raw == "" {
		return "", access.RoleGuest
	}

	var claims markerClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.Secret, nil
	})
	if err != nil || !tok.Valid {
		return "", access.RoleGuest
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", access.RoleGuest
	}
	if !claims.ExpiresAt.Time.After(m.clock()) {
		return "", access.RoleGuest
	}
	return claims.Subject, access.ResolveRole(claims.Role)
}

// Encode returns the cookie value binding role to uid.
func (m *RoleMarker) Encode(uid string, role access.Role) string {
	resolved := access.ResolveRole(string(role))
	if !m.signed() {
		return string(resolved)
	}

	now := m.clock()
	claims := markerClaims{
		Role: string(resolved),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl())),
		},
	}
	v, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return ""
	}
	return v
}

// Write sets the marker on the response (login).
func (m *RoleMarker) Write(w http.ResponseWriter, uid string, role access.Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    m.Encode(uid, role),
		Path:     "/",
		MaxAge:   int(m.ttl().Seconds()),
		HttpOnly: true,
		Secure:   m != nil && m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the marker (logout).
func (m *RoleMarker) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m != nil && m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
