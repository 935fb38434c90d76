// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/collabhub/internal/app/store/audit"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/normalize"
	"github.com/dalemusser/collabhub/internal/app/system/paging"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /api/projects/{id}/audit.
//
// Query parameters: category, event_type, start_date and end_date
// (YYYY-MM-DD, end inclusive) and page. Only administrators may read the
// trail.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	projectID, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}

	filter := audit.QueryFilter{ProjectID: &projectID}
	filter.Category = normalize.QueryParam(query.Get(r, "category"))
	if filter.Category != "" && !validCategory(filter.Category) {
		apierrors.BadRequest(w, "Unknown category.")
		return
	}
	filter.EventType = normalize.QueryParam(query.Get(r, "event_type"))
	if filter.EventType != "" && !validEventType(filter.Category, filter.EventType) {
		apierrors.BadRequest(w, "Unknown event type.")
		return
	}
	if s := normalize.QueryParam(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			apierrors.BadRequest(w, "start_date must be YYYY-MM-DD.")
			return
		}
		filter.StartTime = &t
	}
	if s := normalize.QueryParam(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			apierrors.BadRequest(w, "end_date must be YYYY-MM-DD.")
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &end
	}
	page := paging.ParsePage(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "project audit trail")
	defer cancel()

	p, err := h.Svc.Load(ctx, projectID)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	if err := projectpolicy.RequireAdministrator(&p, actor); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}

	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	filter.Limit = paging.LimitPlusOne()
	filter.Offset = paging.Offset(page)
	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	hasMore := paging.TrimPage(&events)

	names := h.resolveNames(ctx, events)
	items := make([]eventView, 0, len(events))
	for _, e := range events {
		items = append(items, toView(e, names))
	}

	apiresp.OK(w, http.StatusOK, map[string]any{
		"events":      items,
		"total":       total,
		"page":        page,
		"total_pages": paging.TotalPages(total),
		"has_more":    hasMore,
	})
}

// resolveNames batch-loads the names of every actor and target in events.
// A lookup failure degrades to ids only.
func (h *Handler) resolveNames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			seen[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			seen[*e.UserID] = struct{}{}
		}
	}
	names := make(map[primitive.ObjectID]string, len(seen))
	if len(seen) == 0 {
		return names
	}
	ids := make([]primitive.ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	users, err := h.Users.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("failed to resolve user names for audit trail", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func toView(e audit.Event, names map[primitive.ObjectID]string) eventView {
	v := eventView{
		ID:        e.ID.Hex(),
		Timestamp: e.Timestamp,
		Category:  e.Category,
		EventType: e.EventType,
		Success:   e.Success,
		Reason:    e.FailureReason,
		RequestID: e.RequestID,
		Details:   e.Details,
	}
	if e.ActorID != nil {
		v.ActorID = e.ActorID.Hex()
		v.ActorName = names[*e.ActorID]
	}
	if e.UserID != nil {
		v.TargetID = e.UserID.Hex()
		v.TargetName = names[*e.UserID]
	}
	return v
}
