// internal/app/features/invites/routes.go
package invites

import (
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// ProjectRoutes is mounted at /api/projects/{id}/invite.
func ProjectRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Post("/", h.HandleIssue)
	r.Delete("/", h.HandleDisable)
	return r
}

// RedeemRoutes is mounted at /api/invites.
func RedeemRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Post("/{token}/redeem", h.HandleRedeem)
	return r
}
