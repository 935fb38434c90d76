// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	rolestore "github.com/dalemusser/collabhub/internal/app/store/roles"
	userstore "github.com/dalemusser/collabhub/internal/app/store/users"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/projecttasks"
	"go.uber.org/zap"
)

// Mapping is the HTTP rendering of one domain error.
type Mapping struct {
	Status int
	Code   string
}

// table is ordered; the first entry matched with errors.Is wins.
var table = []struct {
	err error
	Mapping
}{
	{projectpolicy.ErrProjectNotFound, Mapping{http.StatusNotFound, "project_not_found"}},
	{projectpolicy.ErrNotAMember, Mapping{http.StatusForbidden, "not_a_member"}},
	{projectpolicy.ErrNotAdministrator, Mapping{http.StatusForbidden, "not_administrator"}},
	{projectpolicy.ErrRoleNotPermitted, Mapping{http.StatusForbidden, "role_not_permitted"}},
	{projectpolicy.ErrMemberNotFound, Mapping{http.StatusNotFound, "member_not_found"}},
	{projectpolicy.ErrAlreadyMember, Mapping{http.StatusConflict, "already_member"}},
	{projectpolicy.ErrIsOwner, Mapping{http.StatusConflict, "is_owner"}},
	{projectpolicy.ErrLastAdministrator, Mapping{http.StatusConflict, "last_administrator"}},
	{projectpolicy.ErrRoleNotFound, Mapping{http.StatusBadRequest, "role_not_found"}},
	{rolestore.ErrRoleNotFound, Mapping{http.StatusBadRequest, "role_not_found"}},
	{projectpolicy.ErrInvalidInvite, Mapping{http.StatusNotFound, "invalid_or_expired_invite"}},
	{projectpolicy.ErrInviteLinksDisabled, Mapping{http.StatusConflict, "invite_links_disabled"}},
	{projectpolicy.ErrInvalidTransition, Mapping{http.StatusConflict, "invalid_transition"}},
	{projectpolicy.ErrTaskNotFound, Mapping{http.StatusNotFound, "task_not_found"}},
	{membership.ErrNameRequired, Mapping{http.StatusBadRequest, "validation_failed"}},
	{projecttasks.ErrNameRequired, Mapping{http.StatusBadRequest, "validation_failed"}},
	{projecttasks.ErrUnknownStatus, Mapping{http.StatusBadRequest, "validation_failed"}},
	{userstore.ErrDuplicateEmail, Mapping{http.StatusConflict, "email_taken"}},
	{membership.ErrConcurrentUpdate, Mapping{http.StatusConflict, "concurrent_update"}},
}

// Lookup returns the mapping for err. Anything unrecognised, including
// membership.ErrStorageFailure, is an internal error.
func Lookup(err error) (Mapping, error) {
	for _, e := range table {
		if stderrors.Is(err, e.err) {
			return e.Mapping, e.err
		}
	}
	return Mapping{http.StatusInternalServerError, "internal_error"}, nil
}

// Write renders err as the JSON error envelope. Known errors answer with the
// sentinel's message; internal errors are logged and answer with a generic
// message so storage details never reach the client.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	m, sentinel := Lookup(err)
	if sentinel == nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		apiresp.Error(w, m.Status, m.Code, "Something went wrong. Please try again.")
		return
	}
	apiresp.Error(w, m.Status, m.Code, sentinel.Error())
}

// BadRequest answers 400 for malformed input.
func BadRequest(w http.ResponseWriter, msg string) {
	apiresp.Error(w, http.StatusBadRequest, "validation_failed", msg)
}

// Unauthorized answers 401.
func Unauthorized(w http.ResponseWriter) {
	apiresp.Error(w, http.StatusUnauthorized, "unauthorized", "sign in required")
}
