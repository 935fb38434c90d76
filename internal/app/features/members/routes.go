// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes is mounted at /api/projects/{id}/members.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Put("/{userID}/role", h.HandleAssignRole)
	r.Delete("/{userID}", h.HandleRemove)
	return r
}

// LeaveRoutes is mounted at /api/projects/{id}/leave.
func LeaveRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Post("/", h.HandleLeave)
	return r
}
