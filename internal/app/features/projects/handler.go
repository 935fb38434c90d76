// internal/app/features/projects/handler.go
package projects

import (
	"context"
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/inputval"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProjectLister lists the live projects a user belongs to.
type ProjectLister interface {
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error)
}

// UserLister resolves member ids to users.
type UserLister interface {
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

type Handler struct {
	Svc      *membership.Service
	Projects ProjectLister
	Users    UserLister
	Log      *zap.Logger
}

func NewHandler(svc *membership.Service, projects ProjectLister, users UserLister, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:      svc,
		Projects: projects,
		Users:    users,
		Log:      logger,
	}
}

// ServeList handles GET /api/projects: the caller's projects with their own
// role in each.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list projects")
	defer cancel()

	list, err := h.Projects.ListByMember(ctx, actor)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	rows := make([]projectSummary, 0, len(list))
	for _, p := range list {
		me, _ := p.FindMember(actor)
		rows = append(rows, projectSummary{
			ID:          p.ID.Hex(),
			Name:        p.Name,
			Description: p.Description,
			MyRole:      me.Role,
			IsOwner:     p.IsOwner(actor),
			MemberCount: len(p.Members),
		})
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"projects": rows})
}

// HandleCreate handles POST /api/projects.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "create project")
	defer cancel()

	p, err := h.Svc.CreateProject(ctx, actor, in.Name, in.Description)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusCreated, map[string]any{"project": p})
}

// ServeGet handles GET /api/projects/{id}. Only members may read a project.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	id, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get project")
	defer cancel()

	p, err := h.Svc.GetForMember(ctx, id, actor)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(p.Members))
	for _, m := range p.Members {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.ListByIDs(ctx, ids)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"project": newProjectView(p, users)})
}

// HandleDelete handles DELETE /api/projects/{id}. Repeating the call resumes
// a cascade that was interrupted.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	id, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
	defer cancel()

	if err := h.Svc.DeleteProject(ctx, id, actor); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"deleted": true})
}
