// internal/app/features/accounts/routes.go
package accounts

import (
	"github.com/globaltrotter/globaltrotter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/auth subrouter.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.HandleRegister)
	r.Post("/external", h.HandleExternalRegister)
	r.Post("/external/login", h.HandleExternalLogin)
	r.Post("/login", h.HandleLogin)
	r.Get("/verify", h.HandleVerify)
	r.Post("/verify/resend", h.HandleResend)
	r.Post("/refresh", h.HandleRefresh)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/logout", h.HandleLogout)
		pr.Get("/me", h.HandleMe)
	})

	return r
}
