// internal/app/features/members/handler.go
package members

import (
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/inputval"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves role changes, removals and leaving for project members.
type Handler struct {
	Svc *membership.Service
	Log *zap.Logger
}

func NewHandler(svc *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type roleInput struct {
	Role string `json:"role" validate:"required" label:"Role"`
}

// HandleAssignRole handles PUT /api/projects/{id}/members/{userID}/role.
// Unknown role names answer role_not_found rather than a validation error.
func (h *Handler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := apierrors.PathID(w, r, "userID")
	if !ok {
		return
	}
	var in roleInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object with a role.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.BadRequest(w, res.First())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assign role")
	defer cancel()

	p, err := h.Svc.AssignRole(ctx, projectID, targetID, actor, in.Role)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	m, _ := p.FindMember(targetID)
	apiresp.OK(w, http.StatusOK, map[string]any{"member": m, "version": p.Version})
}

// HandleRemove handles DELETE /api/projects/{id}/members/{userID}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := apierrors.PathID(w, r, "userID")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove member")
	defer cancel()

	if err := h.Svc.RemoveMember(ctx, projectID, actor, targetID); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"removed": true})
}

// HandleLeave handles POST /api/projects/{id}/leave.
//
//	{ "ok": true, "left": true }
//	{ "ok": true, "last_admin_choice": true, "candidates": [ ...members ] }
//
// The second form is not a failure: the caller is the last administrator and
// must promote a candidate (or delete the project) before leaving.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "leave project")
	defer cancel()

	res, err := h.Svc.LeaveProject(ctx, projectID, actor)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	if res.LastAdminChoice {
		apiresp.OK(w, http.StatusOK, map[string]any{
			"last_admin_choice": true,
			"candidates":        res.Candidates,
		})
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"left": true})
}
