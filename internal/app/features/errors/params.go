package errors

import (
	"net/http"
	"strings"

	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PathID parses the named chi URL parameter as an ObjectID, answering 400
// when it is malformed.
func PathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		BadRequest(w, "Invalid "+name+".")
		return primitive.NilObjectID, false
	}
	return id, true
}

// Actor returns the signed-in user's id, answering 401 when there is none.
func Actor(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, ok := auth.CurrentUserID(r)
	if !ok {
		Unauthorized(w)
	}
	return id, ok
}
