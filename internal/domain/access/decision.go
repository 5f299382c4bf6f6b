// internal/domain/access/decision.go
package access

import "net/url"

// Outcome is the terminal result of an access evaluation.
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToRoleHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToRoleHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Decision is what the gate acts on. Location is empty for Allow.
type Decision struct {
	Outcome  Outcome
	Location string
}

// IsRedirect reports whether the decision sends the requester elsewhere.
func (d Decision) IsRedirect() bool {
	return d.Outcome != Allow
}

func allow() Decision { return Decision{Outcome: Allow} }

func toLogin(loginPath, requested string) Decision {
	return Decision{Outcome: RedirectToLogin, Location: LoginURL(loginPath, requested)}
}

func toHome(role Role) Decision {
	return Decision{Outcome: RedirectToRoleHome, Location: RoleHome(role)}
}

// LoginURL builds "<loginPath>?redirect=<url-encoded requested path>".
func LoginURL(loginPath, requested string) string {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if requested == "" {
		return loginPath
	}
	return loginPath + "?redirect=" + url.QueryEscape(requested)
}
