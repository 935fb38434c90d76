// Package projectpolicy holds the membership invariants of a project.
//
// Every function is pure: it takes an already-loaded project snapshot and
// either succeeds or returns one of the sentinel errors in errors.go.
// Mutating operations compose these in a fixed order:
//
//	existence -> authorization -> invariant preservation
//
// The administrator count is always computed on the simulated post-change
// member list, never on the current one.
package projectpolicy

import (
	"errors"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireLive fails with ErrProjectNotFound when p is nil or a cascade delete
// has started on it.
func RequireLive(p *models.Project) error {
	if p == nil || p.DeletingAt != nil {
		return ErrProjectNotFound
	}
	return nil
}

// RequireMember returns userID's member entry or ErrNotAMember.
func RequireMember(p *models.Project, userID primitive.ObjectID) (models.Member, error) {
	m, ok := p.FindMember(userID)
	if !ok {
		return models.Member{}, ErrNotAMember
	}
	return m, nil
}

// RequireAdministrator checks that userID is a member holding the
// administrator role.
func RequireAdministrator(p *models.Project, userID primitive.ObjectID) error {
	_, err := RequireAnyRole(p, userID, models.RoleAdministrator)
	if errors.Is(err, ErrRoleNotPermitted) {
		return ErrNotAdministrator
	}
	return err
}

// RequireAnyRole checks that userID is a member holding one of roles.
func RequireAnyRole(p *models.Project, userID primitive.ObjectID, roles ...models.RoleName) (models.Member, error) {
	m, err := RequireMember(p, userID)
	if err != nil {
		return models.Member{}, err
	}
	for _, r := range roles {
		if m.Role == r {
			return m, nil
		}
	}
	return models.Member{}, ErrRoleNotPermitted
}

// RequireNotOwner blocks the owner from leaving or being removed.
func RequireNotOwner(p *models.Project, userID primitive.ObjectID) error {
	if p.IsOwner(userID) {
		return ErrIsOwner
	}
	return nil
}

// RequireUniqueMembership fails with ErrAlreadyMember if userID is already
// in the member list.
func RequireUniqueMembership(p *models.Project, userID primitive.ObjectID) error {
	if _, ok := p.FindMember(userID); ok {
		return ErrAlreadyMember
	}
	return nil
}

// RequireAdminCountAfterChange applies c to a copy of the member list and
// fails with ErrLastAdministrator when the result is non-empty but holds no
// administrator.
func RequireAdminCountAfterChange(p *models.Project, c Change) error {
	after := ApplyChange(p.Members, c)
	if len(after) > 0 && CountAdministrators(after) == 0 {
		return ErrLastAdministrator
	}
	return nil
}

// CountAdministrators returns how many members hold the administrator role.
func CountAdministrators(members []models.Member) int {
	n := 0
	for _, m := range members {
		if m.Role == models.RoleAdministrator {
			n++
		}
	}
	return n
}
