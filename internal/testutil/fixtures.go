package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	return WithChiURLParams(r, map[string]string{key: value})
}

// WithChiURLParams adds several chi URL parameters at once.
func WithChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with no project memberships.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        strings.ToLower(email),
		PasswordHash: "not-a-real-hash",
		Status:       "active",
		ProjectIDs:   []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// CreateProject inserts a project owned by owner whose member list is
// members (owner is not added implicitly). Each member's user document gets
// the project back-reference.
func (f *Fixtures) CreateProject(ctx context.Context, name string, owner primitive.ObjectID, members ...models.Member) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	for i := range members {
		if members[i].JoinedAt.IsZero() {
			members[i].JoinedAt = now
		}
	}
	if members == nil {
		members = []models.Member{}
	}
	p := models.Project{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		OwnerID:   owner,
		Members:   members,
		TaskIDs:   []primitive.ObjectID{},
		Settings:  models.ProjectSettings{LinkJoinEnabled: true},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("CreateProject: %v", err)
	}
	for _, m := range members {
		_, err := f.db.Collection("users").UpdateOne(ctx,
			bson.M{"_id": m.UserID},
			bson.M{"$addToSet": bson.M{"project_ids": p.ID}})
		if err != nil {
			f.t.Fatalf("CreateProject back-reference: %v", err)
		}
	}
	return p
}

// Admin builds a member entry for CreateProject.
func Admin(userID primitive.ObjectID) models.Member {
	return models.Member{UserID: userID, Role: models.RoleAdministrator}
}

// Developer builds a member entry for CreateProject.
func Developer(userID primitive.ObjectID) models.Member {
	return models.Member{UserID: userID, Role: models.RoleDeveloper}
}

// Viewer builds a member entry for CreateProject.
func Viewer(userID primitive.ObjectID) models.Member {
	return models.Member{UserID: userID, Role: models.RoleViewer}
}
