// internal/app/store/roles/rolestore.go
package rolestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrRoleNotFound = errors.New("role not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("roles")}
}

// EnsureSeeded upserts every canonical role by name. Safe to call on every
// start; existing documents keep their ids and created_at.
func (s *Store) EnsureSeeded(ctx context.Context) error {
	now := time.Now().UTC()
	for _, name := range models.AllRoles() {
		_, err := s.c.UpdateOne(ctx,
			bson.M{"name": name},
			bson.M{"$setOnInsert": bson.M{"name": name, "created_at": now}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the stored role for name (case-insensitive).
func (s *Store) Lookup(ctx context.Context, name string) (models.Role, error) {
	rn, ok := models.ParseRole(name)
	if !ok {
		return models.Role{}, ErrRoleNotFound
	}
	var r models.Role
	if err := s.c.FindOne(ctx, bson.M{"name": rn}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	return r, nil
}

// List returns all stored roles in catalog order.
func (s *Store) List(ctx context.Context) ([]models.Role, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var stored []models.Role
	if err := cur.All(ctx, &stored); err != nil {
		return nil, err
	}
	byName := make(map[models.RoleName]models.Role, len(stored))
	for _, r := range stored {
		byName[r.Name] = r
	}
	out := make([]models.Role, 0, len(byName))
	for _, name := range models.AllRoles() {
		if r, ok := byName[name]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
