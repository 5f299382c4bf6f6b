// internal/adapters/in/http/storefront/router.go
package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"koifarm/internal/adapters/in/http/middleware"
	"koifarm/internal/adapters/in/http/storefront/handler"
	"koifarm/internal/domain/access"
)

// Deps is the storefront handler set.
type Deps struct {
	Cart    *handler.CartHandler
	Session http.Handler

	Policy      *access.Policy
	Marker      *middleware.RoleMarker
	Logger      *zap.Logger
	CORSOrigins []string
}

// publicSections are served to everyone who passes the request-level gate.
var publicSections = []struct {
	pattern string
	name    string
}{
	{"/", "home"},
	{"/catalog", "catalog"},
	{"/catalog/*", "catalog"},
	{"/cart", "cart"},
	{"/checkout", "checkout"},
	{"/login", "login"},
	{"/register", "register"},
	{"/sign-in", "login"},
	{"/sign-up", "register"},
	{"/signin", "login"},
	{"/signup", "register"},
	{"/forgot-password", "forgot-password"},
}

// roleSections each get their own layout-level guard.
var roleSections = []struct {
	prefix string
	name   string
}{
	{"/manager", "manager"},
	{"/sale", "sale"},
}

// NewRouter builds the storefront router.
// Chain (outer → inner): CORS → request id → request log → recover → access gate → routes.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Policy
	if policy == nil {
		policy = access.DefaultPolicy()
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(deps.CORSOrigins))
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.NewAccessGate(policy, deps.Marker, logger).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// api
	if deps.Cart != nil {
		r.Mount("/api/cart", deps.Cart.Routes())
	} else {
		logger.Warn("[storefront.router] nil cart handler (registering NotFound)")
		r.Handle("/api/cart*", http.NotFoundHandler())
	}
	if deps.Session != nil {
		r.Handle("/api/auth/session", deps.Session)
	} else {
		logger.Warn("[storefront.router] nil session handler (registering NotFound)")
		r.Handle("/api/auth/session", http.NotFoundHandler())
	}

	// pages
	for _, s := range publicSections {
		r.Get(s.pattern, handler.SectionHandler(s.name).ServeHTTP)
	}

	for _, s := range roleSections {
		rule, ok := policy.Match(s.prefix)
		section := handler.SectionHandler(s.name)

		r.Route(s.prefix, func(sr chi.Router) {
			if ok {
				sr.Use(middleware.RequireSection(deps.Marker, policy.LoginPath, logger, rule.Roles...))
			} else {
				logger.Warn("[storefront.router] section has no route rule (served unguarded)", zap.String("prefix", s.prefix))
			}
			sr.Get("/", section.ServeHTTP)
			sr.Get("/*", section.ServeHTTP)
		})
	}

	return r
}
