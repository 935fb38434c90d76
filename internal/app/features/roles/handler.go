// internal/app/features/roles/handler.go
package roles

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Catalog reads the seeded role documents.
type Catalog interface {
	List(ctx context.Context) ([]models.Role, error)
	Lookup(ctx context.Context, name string) (models.Role, error)
}

type Handler struct {
	Roles Catalog
	Log   *zap.Logger
}

func NewHandler(roles Catalog, logger *zap.Logger) *Handler {
	return &Handler{Roles: roles, Log: logger}
}

// ServeList handles GET /api/roles.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Roles.List(r.Context())
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	names := make([]models.RoleName, 0, len(list))
	for _, role := range list {
		names = append(names, role.Name)
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"roles": names})
}

// ServeGet handles GET /api/roles/{name}. Names match case-insensitively;
// the canonical name is returned.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	role, err := h.Roles.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"role": role.Name})
}
