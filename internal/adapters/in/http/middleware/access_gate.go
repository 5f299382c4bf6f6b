// internal/adapters/in/http/middleware/access_gate.go
package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"koifarm/internal/domain/access"
)

// context key は string を使わず、衝突回避のため独自型を使用
type ctxKey struct{ name string }

var ctxKeyRole = ctxKey{name: "role"}

// WithRole stores the resolved role in ctx.
func WithRole(ctx context.Context, role access.Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// CurrentRole returns the role resolved by AccessGate (guest when absent).
func CurrentRole(r *http.Request) access.Role {
	if v, ok := r.Context().Value(ctxKeyRole).(access.Role); ok {
		return v
	}
	return access.RoleGuest
}

// AccessGate is the request-level gate: every request is evaluated against the
// route policy before any page logic runs.
type AccessGate struct {
	Policy *access.Policy
	Marker *RoleMarker
	Logger *zap.Logger

	decisions metric.Int64Counter
}

// NewAccessGate records decisions on the global meter provider.
func NewAccessGate(policy *access.Policy, marker *RoleMarker, logger *zap.Logger) *AccessGate {
	return newAccessGate(policy, marker, logger, otel.GetMeterProvider())
}

func newAccessGate(policy *access.Policy, marker *RoleMarker, logger *zap.Logger, mp metric.MeterProvider) *AccessGate {
	if policy == nil {
		policy = access.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &AccessGate{Policy: policy, Marker: marker, Logger: logger}

	counter, err := mp.Meter("koifarm/access").Int64Counter(
		"access.decisions",
		metric.WithDescription("Access gate decisions by outcome"),
	)
	if err != nil {
		logger.Warn("[access_gate] decision counter unavailable", zap.Error(err))
	} else {
		g.decisions = counter
	}
	return g
}

func (g *AccessGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := g.Marker.Read(r)
		d := g.Policy.Evaluate(r.URL.RequestURI(), role)

		if g.decisions != nil {
			g.decisions.Add(r.Context(), 1, metric.WithAttributes(
				attribute.String("outcome", d.Outcome.String()),
				attribute.String("role", role.String()),
			))
		}

		if d.IsRedirect() {
			g.Logger.Info("[access_gate] redirect",
				zap.String("path", r.URL.Path),
				zap.String("role", role.String()),
				zap.String("outcome", d.Outcome.String()),
				zap.String("location", d.Location),
			)
			http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
	})
}
