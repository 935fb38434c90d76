// internal/app/features/settings/routes.go
package settings

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/projects/{id}/settings.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Patch("/", h.HandleUpdate)
	return r
}
