// internal/app/features/projects/types.go
package projects

import (
	"github.com/dalemusser/collabhub/internal/domain/models"
)

// memberView is a member entry with the display fields of its user.
type memberView struct {
	models.Member
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	IsOwner  bool   `json:"is_owner"`
}

// projectView is the detail payload; its Members shadows Project.Members.
type projectView struct {
	models.Project
	Members []memberView `json:"members"`
}

// projectSummary is one row of the "my projects" list.
type projectSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MyRole      models.RoleName `json:"my_role"`
	IsOwner     bool            `json:"is_owner"`
	MemberCount int             `json:"member_count"`
}

type createInput struct {
	Name        string `json:"name" validate:"required,max=200" label:"Project name"`
	Description string `json:"description" validate:"max=5000" label:"Description"`
}

func newProjectView(p models.Project, users []models.User) projectView {
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID.Hex()] = u
	}
	view := projectView{Project: p, Members: make([]memberView, 0, len(p.Members))}
	for _, m := range p.Members {
		u := byID[m.UserID.Hex()]
		view.Members = append(view.Members, memberView{
			Member:   m,
			FullName: u.FullName,
			Email:    u.Email,
			IsOwner:  p.IsOwner(m.UserID),
		})
	}
	return view
}
