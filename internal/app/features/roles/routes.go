// internal/app/features/roles/routes.go
package roles

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/roles.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/{name}", h.ServeGet)
	return r
}
