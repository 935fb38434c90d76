// internal/app/features/tasks/handler.go
package tasks

import (
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/inputval"
	"github.com/dalemusser/collabhub/internal/app/system/normalize"
	"github.com/dalemusser/collabhub/internal/app/system/projecttasks"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the tasks of a project. Every member may list them;
// administrators and developers may change them.
type Handler struct {
	Svc *projecttasks.Service
	Log *zap.Logger
}

func NewHandler(svc *projecttasks.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type createInput struct {
	Name        string `json:"name" validate:"required,max=200" label:"Task name"`
	Description string `json:"description" validate:"max=5000" label:"Description"`
	AssigneeID  string `json:"assignee_id" validate:"omitempty,objectid" label:"Assignee"`
}

// patchInput is a partial update. An empty assignee_id clears the assignee.
type patchInput struct {
	Name        *string `json:"name" validate:"omitempty,max=200" label:"Task name"`
	Description *string `json:"description" validate:"omitempty,max=5000" label:"Description"`
	Status      *string `json:"status" label:"Status"`
	AssigneeID  *string `json:"assignee_id" validate:"omitempty,objectid" label:"Assignee"`
}

func parseAssignee(s string) *primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &id
}

// ServeList handles GET /api/projects/{id}/tasks[?status=todo].
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	status := normalize.Status(r.URL.Query().Get("status"))

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list tasks")
	defer cancel()

	list, err := h.Svc.List(ctx, projectID, actor, status)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"tasks": list})
}

// HandleCreate handles POST /api/projects/{id}/tasks.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	var in createInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.BadRequest(w, res.First())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create task")
	defer cancel()

	t, err := h.Svc.Create(ctx, projectID, actor, projecttasks.CreateInput{
		Name:        in.Name,
		Description: in.Description,
		AssigneeID:  parseAssignee(in.AssigneeID),
	})
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusCreated, map[string]any{"task": t})
}

// HandleUpdate handles PATCH /api/projects/{id}/tasks/{taskID}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := apierrors.PathID(w, r, "taskID")
	if !ok {
		return
	}
	var in patchInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.BadRequest(w, res.First())
		return
	}

	patch := projecttasks.Patch{
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
	}
	if in.AssigneeID != nil {
		if strings.TrimSpace(*in.AssigneeID) == "" {
			patch.ClearAssignee = true
		} else {
			patch.AssigneeID = parseAssignee(*in.AssigneeID)
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update task")
	defer cancel()

	t, err := h.Svc.Update(ctx, projectID, taskID, actor, patch)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"task": t})
}

// HandleDelete handles DELETE /api/projects/{id}/tasks/{taskID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	taskID, ok := apierrors.PathID(w, r, "taskID")
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete task")
	defer cancel()

	if err := h.Svc.Delete(ctx, projectID, taskID, actor); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"deleted": true})
}
