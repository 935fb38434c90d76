// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes mounts registration and sign-in under /api/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	return r
}
