package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleName is one of the fixed project roles. The set is closed; a member's
// role always holds one of the constants below.
type RoleName string

const (
	RoleAdministrator RoleName = "administrator"
	RoleDeveloper     RoleName = "developer"
	RoleViewer        RoleName = "viewer"
)

// AllRoles returns the role catalog in display order.
func AllRoles() []RoleName {
	return []RoleName{RoleAdministrator, RoleDeveloper, RoleViewer}
}

// ParseRole resolves a role name, ignoring case and surrounding whitespace.
func ParseRole(s string) (RoleName, bool) {
	switch RoleName(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdministrator:
		return RoleAdministrator, true
	case RoleDeveloper:
		return RoleDeveloper, true
	case RoleViewer:
		return RoleViewer, true
	}
	return "", false
}

// Role is the seeded lookup document for a RoleName (collection "roles").
type Role struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      RoleName           `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
