// internal/domain/access/policy.go
package access

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// DefaultLoginPath is where unauthenticated requesters are sent.
const DefaultLoginPath = "/login"

var ErrInvalidPolicy = errors.New("access: invalid policy")

// RouteRule restricts every path under Prefix to Roles.
type RouteRule struct {
	Prefix string
	Roles  []Role
}

// Policy is the declarative route table evaluated by the gates.
//
// Rules are kept ordered longest prefix first (stable for equal lengths),
// so the first matching rule is also the most specific one.
type Policy struct {
	LoginPath  string
	Rules      []RouteRule
	AuthOnly   []string
	Exclusions []string
}

// DefaultPolicy is the storefront's built-in table.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(
		DefaultLoginPath,
		[]RouteRule{
			{Prefix: "/manager", Roles: []Role{RoleManager, RoleFarmStaff}},
			{Prefix: "/sale", Roles: []Role{RoleSaleStaff}},
		},
		[]string{"/login", "/register", "/sign-in", "/sign-up", "/signin", "/signup", "/forgot-password"},
		[]string{"/api/", "/static/", "/assets/", "/_internal/", "/healthz", "/favicon.ico"},
	)
	return p
}

// NewPolicy validates and normalizes a route table.
func NewPolicy(loginPath string, rules []RouteRule, authOnly, exclusions []string) (*Policy, error) {
	lp := cleanPrefix(loginPath)
	if lp == "" {
		lp = DefaultLoginPath
	}

	p := &Policy{LoginPath: lp}

	for _, r := range rules {
		prefix := cleanPrefix(r.Prefix)
		if prefix == "" || prefix == "/" {
			return nil, fmt.Errorf("%w: rule prefix must be a non-root path: %q", ErrInvalidPolicy, r.Prefix)
		}
		if len(r.Roles) == 0 {
			return nil, fmt.Errorf("%w: rule %s has no roles", ErrInvalidPolicy, prefix)
		}
		roles := make([]Role, 0, len(r.Roles))
		for _, role := range r.Roles {
			rr, ok := ParseRole(string(role))
			if !ok {
				return nil, fmt.Errorf("%w: unknown role %q in rule %s", ErrInvalidPolicy, role, prefix)
			}
			roles = append(roles, rr)
		}
		p.Rules = append(p.Rules, RouteRule{Prefix: prefix, Roles: roles})
	}
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return len(p.Rules[i].Prefix) > len(p.Rules[j].Prefix)
	})

	for _, a := range authOnly {
		if c := cleanPrefix(a); c != "" && c != "/" {
			p.AuthOnly = append(p.AuthOnly, c)
		}
	}

	// exclusions keep a trailing slash when given one ("/api/" must not match "/apiary")
	for _, e := range exclusions {
		e = strings.TrimSpace(e)
		if e == "" || e == "/" {
			continue
		}
		if !strings.HasPrefix(e, "/") {
			e = "/" + e
		}
		p.Exclusions = append(p.Exclusions, e)
	}

	return p, nil
}

// Evaluate runs the request-level algorithm for (requestTarget, role).
// requestTarget may carry a query ("/manager/orders?id=5"): rules match the cleaned
// path only, the login redirect keeps the query.
func (p *Policy) Evaluate(requestTarget string, role Role) Decision {
	if p == nil {
		p = DefaultPolicy()
	}
	role = ResolveRole(string(role))
	rawPath, rawQuery, _ := strings.Cut(requestTarget, "?")
	reqPath := cleanRequestPath(rawPath)

	// 1) assets / internal paths are never role-checked
	if p.IsExcluded(reqPath) {
		return allow()
	}

	// 2) sign-in / sign-up pages are for guests only
	if p.IsAuthOnly(reqPath) {
		if role.IsAuthenticated() {
			return toHome(role)
		}
		return allow()
	}

	// 3) protected prefixes
	rule, ok := p.Match(reqPath)
	if !ok {
		return allow()
	}
	if role == RoleGuest {
		returnTo := reqPath
		if rawQuery != "" {
			returnTo += "?" + rawQuery
		}
		return toLogin(p.LoginPath, returnTo)
	}
	if !Permits(rule.Roles, role) {
		return toHome(role)
	}
	return allow()
}

// Match returns the first rule whose prefix covers requestPath.
func (p *Policy) Match(requestPath string) (RouteRule, bool) {
	if p == nil {
		return RouteRule{}, false
	}
	reqPath := cleanRequestPath(requestPath)
	for _, r := range p.Rules {
		if hasPathPrefix(reqPath, r.Prefix) {
			return r, true
		}
	}
	return RouteRule{}, false
}

// IsAuthOnly reports whether requestPath is a guest-only page (sign-in and friends).
func (p *Policy) IsAuthOnly(requestPath string) bool {
	if p == nil {
		return false
	}
	reqPath := cleanRequestPath(requestPath)
	for _, a := range p.AuthOnly {
		if hasPathPrefix(reqPath, a) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether requestPath bypasses role checks entirely.
func (p *Policy) IsExcluded(requestPath string) bool {
	reqPath := cleanRequestPath(requestPath)
	if path.Ext(path.Base(reqPath)) != "" {
		return true
	}
	if p == nil {
		return false
	}
	for _, e := range p.Exclusions {
		if strings.HasSuffix(e, "/") {
			if strings.HasPrefix(reqPath+"/", e) {
				return true
			}
			continue
		}
		if hasPathPrefix(reqPath, e) {
			return true
		}
	}
	return false
}

// ----------------------------
// Helpers
// ----------------------------

// hasPathPrefix is segment-aware: "/manager" covers "/manager" and "/manager/x", not "/managers".
func hasPathPrefix(p, prefix string) bool {
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/")
}

func cleanPrefix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return path.Clean(s)
}

func cleanRequestPath(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "/"
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return path.Clean(s)
}
