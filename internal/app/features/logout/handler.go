// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Audit      *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Audit:      audit,
	}
}

// ServeLogout handles POST /api/auth/logout. Signing out without a session
// still succeeds and still expires the cookie.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.CurrentUserID(r); ok {
		h.Audit.Logout(r.Context(), id)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	apiresp.OK(w, http.StatusOK, nil)
}
