// internal/platform/di/storefront/register.go
package storefront

import (
	"net/http"

	sfhttp "koifarm/internal/adapters/in/http/storefront"
)

// Handler builds the storefront router from the container.
func Handler(cont *Container) http.Handler {
	if cont == nil {
		return sfhttp.NewRouter(sfhttp.Deps{})
	}

	deps := sfhttp.Deps{
		Cart:   cont.CartHandler,
		Policy: cont.Policy,
		Marker: cont.Marker,
	}
	if cont.SessionHandler != nil {
		deps.Session = cont.SessionHandler
	}
	if cont.Infra != nil {
		deps.Logger = cont.Infra.Logger
		if cont.Infra.Config != nil {
			deps.CORSOrigins = cont.Infra.Config.CORSAllowedOrigins
		}
	}
	return sfhttp.NewRouter(deps)
}
