// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	"github.com/dalemusser/collabhub/internal/app/store/audit"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// EventReader is the slice of the audit store the trail endpoint reads.
type EventReader interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// UserLister resolves actor and target names.
type UserLister interface {
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

type Handler struct {
	Svc    *membership.Service
	Events EventReader
	Users  UserLister
	Log    *zap.Logger
}

// NewHandler constructs the project audit trail handler.
func NewHandler(svc *membership.Service, events EventReader, users UserLister, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Events: events, Users: users, Log: logger}
}
