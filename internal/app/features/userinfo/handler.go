// internal/app/features/userinfo/handler.go
package userinfo

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	userstore "github.com/dalemusser/collabhub/internal/app/store/users"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserReader loads the account behind a session.
type UserReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// Handler serves the signed-in user's own account.
type Handler struct {
	Users UserReader
	Log   *zap.Logger
}

// NewHandler creates a new userinfo handler.
func NewHandler(users UserReader, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

// ServeMe handles GET /api/auth/me.
//
//	{ "ok": true, "user": { "id": "...", "full_name": "...", "email": "...", "project_ids": [...] } }
//
// A session whose account has since been removed answers 401.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	id, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	u, err := h.Users.GetByID(r.Context(), id)
	if errors.Is(err, userstore.ErrNotFound) {
		apierrors.Unauthorized(w)
		return
	}
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"user": u})
}
