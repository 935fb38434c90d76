package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invite is a standing, reusable capability to join one project as a viewer.
// At most one invite exists per project (unique index on project_id).
type Invite struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID primitive.ObjectID `bson:"project_id" json:"project_id"`
	Token     string             `bson:"token" json:"-"`
	IssuedBy  primitive.ObjectID `bson:"issued_by" json:"issued_by"`
	ExpiresAt *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"` // nil = no expiry
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// IsExpired reports whether the invite has passed its expiry at time now.
func (i *Invite) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
