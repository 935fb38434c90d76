// internal/app/features/settings/handler.go
package settings

import (
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves per-project settings. Only administrators may change them.
type Handler struct {
	Svc *membership.Service
	Log *zap.Logger
}

func NewHandler(svc *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// settingsInput is a partial update; omitted flags keep their value.
type settingsInput struct {
	LinkJoinEnabled  *bool `json:"link_join_enabled"`
	PDFExportEnabled *bool `json:"pdf_export_enabled"`
}

// HandleUpdate handles PATCH /api/projects/{id}/settings. Turning
// link_join_enabled off also revokes the project's invite link.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := apierrors.Actor(w, r)
	if !ok {
		return
	}
	id, ok := apierrors.PathID(w, r, "id")
	if !ok {
		return
	}
	var in settingsInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object of settings flags.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update settings")
	defer cancel()

	p, err := h.Svc.UpdateSettings(ctx, id, actor, membership.SettingsPatch{
		LinkJoinEnabled:  in.LinkJoinEnabled,
		PDFExportEnabled: in.PDFExportEnabled,
	})
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusOK, map[string]any{"settings": p.Settings, "version": p.Version})
}
