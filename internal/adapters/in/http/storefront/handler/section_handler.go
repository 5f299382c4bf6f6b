// internal/adapters/in/http/storefront/handler/section_handler.go
package handler

import (
	"net/http"

	"koifarm/internal/adapters/in/http/middleware"
)

// SectionHandler describes a page section. Rendering lives in the frontend;
// this only confirms which section the requester reached and as whom.
func SectionHandler(section string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"section": section,
			"role":    middleware.CurrentRole(r),
			"path":    r.URL.Path,
		})
	})
}
