// internal/domain/access/role.go
package access

import (
	"slices"
	"strings"
)

// Role is the closed set of requester roles.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleCustomer  Role = "customer"
	RoleSaleStaff Role = "sale-staff"
	RoleFarmStaff Role = "farm-staff"
	RoleManager   Role = "manager"
)

// AllRoles lists every known role.
var AllRoles = []Role{RoleGuest, RoleCustomer, RoleSaleStaff, RoleFarmStaff, RoleManager}

// ResolveRole normalizes a raw role token (cookie value, token claim, config entry).
// Missing, empty or unknown tokens resolve to RoleGuest; it never fails.
func ResolveRole(raw string) Role {
	r, ok := parseRole(raw)
	if !ok {
		return RoleGuest
	}
	return r
}

// ParseRole is the strict variant used for configuration: unknown tokens are reported.
func ParseRole(raw string) (Role, bool) {
	return parseRole(raw)
}

func parseRole(raw string) (Role, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" {
		return RoleGuest, false
	}
	r := Role(s)
	if !slices.Contains(AllRoles, r) {
		return RoleGuest, false
	}
	return r, true
}

// IsAuthenticated reports whether the role belongs to a signed-in user.
func (r Role) IsAuthenticated() bool {
	return ResolveRole(string(r)) != RoleGuest
}

func (r Role) String() string { return string(r) }

// RoleHome returns the landing path for an authenticated role.
// farm-staff has no dedicated home and falls through to "/" like every other role.
func RoleHome(r Role) string {
	switch ResolveRole(string(r)) {
	case RoleManager:
		return "/manager"
	case RoleSaleStaff:
		return "/sale"
	default:
		return "/"
	}
}

// Permits reports whether role is in allowed.
func Permits(allowed []Role, role Role) bool {
	return slices.Contains(allowed, ResolveRole(string(role)))
}
