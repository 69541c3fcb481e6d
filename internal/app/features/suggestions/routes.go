// internal/app/features/suggestions/routes.go
package suggestions

import (
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/suggestions subrouter. Suggestions cost an
// upstream call, so only signed-in users may ask.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Post("/", h.Serve)
	return r
}
