package projectpolicy

import "errors"

// Guard failures. Each is terminal for the request and is never retried.
var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrNotAMember          = errors.New("not a member of this project")
	ErrNotAdministrator    = errors.New("administrator role required")
	ErrMemberNotFound      = errors.New("member not found")
	ErrAlreadyMember       = errors.New("already a member of this project")
	ErrIsOwner             = errors.New("the project owner cannot leave or be removed")
	ErrLastAdministrator   = errors.New("project must keep at least one administrator")
	ErrRoleNotFound        = errors.New("role not found")
	ErrInvalidInvite       = errors.New("invite link is invalid or expired")
	ErrRoleNotPermitted    = errors.New("role not permitted for this action")
	ErrInviteLinksDisabled = errors.New("invite links are disabled for this project")
	ErrInvalidTransition   = errors.New("invalid task status transition")
	ErrTaskNotFound        = errors.New("task not found")
)
