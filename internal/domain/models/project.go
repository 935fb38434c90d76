package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member is a (user, role) pair embedded in a Project.
type Member struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     RoleName           `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// ProjectSettings holds per-project feature flags.
type ProjectSettings struct {
	LinkJoinEnabled  bool `bson:"link_join_enabled" json:"link_join_enabled"`
	PDFExportEnabled bool `bson:"pdf_export_enabled" json:"pdf_export_enabled"`
}

// Project is the aggregate root for membership.
//
// NOTE:
//   - OwnerID is tracked separately from Members. The owner can never leave or
//     be removed, whatever role they currently hold.
//   - Version is bumped on every members/settings write and is the optimistic
//     concurrency token for those writes.
//   - DeletingAt is set when a cascade delete starts; a project carrying it is
//     treated as gone by every operation except delete itself.
type Project struct {
	ID          primitive.ObjectID   `bson:"_id" json:"id"`
	Name        string               `bson:"name" json:"name"`
	NameCI      string               `bson:"name_ci" json:"-"`
	Description string               `bson:"description" json:"description"`
	OwnerID     primitive.ObjectID   `bson:"owner_id" json:"owner_id"`
	Members     []Member             `bson:"members" json:"members"`
	TaskIDs     []primitive.ObjectID `bson:"task_ids" json:"task_ids"`
	Settings    ProjectSettings      `bson:"settings" json:"settings"`
	Version     int64                `bson:"version" json:"version"`
	DeletingAt  *time.Time           `bson:"deleting_at,omitempty" json:"deleting_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FindMember returns the member entry for userID.
func (p *Project) FindMember(userID primitive.ObjectID) (Member, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// IsOwner reports whether userID is the project owner.
func (p *Project) IsOwner(userID primitive.ObjectID) bool {
	return p.OwnerID == userID
}
