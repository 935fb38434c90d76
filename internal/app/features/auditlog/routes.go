// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/projects/{id}/audit. The administrator check
// needs the project, so it happens in the handler.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	return r
}
