package projectpolicy

import (
	"time"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChangeKind identifies what a Change does to the member list.
type ChangeKind int

const (
	ChangeRole ChangeKind = iota
	ChangeRemove
	ChangeAdd
)

// Change describes a proposed edit to a project's member list.
type Change struct {
	Kind   ChangeKind
	UserID primitive.ObjectID
	Role   models.RoleName
	At     time.Time // joined_at for additions
}

// RoleChange sets userID's role.
func RoleChange(userID primitive.ObjectID, role models.RoleName) Change {
	return Change{Kind: ChangeRole, UserID: userID, Role: role}
}

// Removal drops userID from the list.
func Removal(userID primitive.ObjectID) Change {
	return Change{Kind: ChangeRemove, UserID: userID}
}

// Addition appends userID with role, joined at t.
func Addition(userID primitive.ObjectID, role models.RoleName, t time.Time) Change {
	return Change{Kind: ChangeAdd, UserID: userID, Role: role, At: t}
}

// ApplyChange returns a new member list with c applied. The input slice is
// not modified. Role changes and removals of absent users are no-ops, as is
// adding a user who is already present.
func ApplyChange(members []models.Member, c Change) []models.Member {
	out := make([]models.Member, 0, len(members)+1)
	present := false
	for _, m := range members {
		if m.UserID != c.UserID {
			out = append(out, m)
			continue
		}
		present = true
		switch c.Kind {
		case ChangeRole:
			m.Role = c.Role
			out = append(out, m)
		case ChangeRemove:
			// dropped
		case ChangeAdd:
			out = append(out, m)
		}
	}
	if c.Kind == ChangeAdd && !present {
		out = append(out, models.Member{UserID: c.UserID, Role: c.Role, JoinedAt: c.At})
	}
	return out
}
