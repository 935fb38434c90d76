// internal/app/features/userinfo/routes.go
package userinfo

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/auth/me.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Get("/", h.ServeMe)
	return r
}
