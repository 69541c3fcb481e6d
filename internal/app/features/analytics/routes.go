// internal/app/features/analytics/routes.go
package analytics

import (
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/analytics subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeMine)
	r.With(sm.RequireAdmin).Get("/all", h.ServeAll)
	return r
}
