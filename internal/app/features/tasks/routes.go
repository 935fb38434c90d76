// internal/app/features/tasks/routes.go
package tasks

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/projects/{id}/tasks.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Patch("/{taskID}", h.HandleUpdate)
	r.Delete("/{taskID}", h.HandleDelete)
	return r
}
