// internal/app/features/invites/handler.go
package invites

import (
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves invite links: administrators issue and revoke them, any
// signed-in user may redeem one.
type Handler struct {
	Svc     *membership.Service
	Limiter ratelimit.KeyLimiter
	Log     *zap.Logger
}

// NewHandler builds a Handler. A nil limiter lets every redemption through.
func NewHandler(svc *membership.Service, limiter ratelimit.KeyLimiter, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Limiter: limiter, Log: logger}
}

// HandleIssue handles POST /api/projects/{id}/invite. Calling it again
// returns the same token while that token is live.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "issue invite")
	defer cancel()

	token, err := h.Svc.IssueInvite(ctx, projectID, actor)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{
		"token":      token,
		"redeem_url": "/api/invites/" + token + "/redeem",
	})
}

// HandleDisable handles DELETE /api/projects/{id}/invite.
func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "disable invites")
	defer cancel()

	if err := h.Svc.DisableInvites(ctx, projectID, actor); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"disabled": true})
}

// HandleRedeem handles POST /api/invites/{token}/redeem. The caller joins
// the project as a viewer.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	if h.Limiter != nil && !h.Limiter.AllowKey(r.Context(), "redeem:"+actor.Hex()) {
		apiresp.Error(w, http.StatusTooManyRequests, "rate_limited",
			"Too many invite attempts. Please wait a minute before trying again.")
		return
	}
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "redeem invite")
	defer cancel()

	projectID, err := h.Svc.RedeemInvite(ctx, token, actor)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"project_id": projectID.Hex(), "role": "viewer"})
}
