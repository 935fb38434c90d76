// internal/app/store/invites/invitestore.go
package invitestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/collabhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// TokenLength is the invite token length in bytes (32 bytes = 64 hex chars).
const TokenLength = 32

var (
	ErrNotFound = errors.New("invite not found")
	// ErrDuplicate is returned when the project already has an invite.
	ErrDuplicate = errors.New("project already has an invite")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invites")}
}

// Create mints a new token for projectID. A nil expiresAt means the token
// never expires. Returns ErrDuplicate if the project already has one.
func (s *Store) Create(ctx context.Context, projectID, issuedBy primitive.ObjectID, expiresAt *time.Time) (models.Invite, error) {
	token, err := generateToken()
	if err != nil {
		return models.Invite{}, err
	}
	inv := models.Invite{
		ID:        primitive.NewObjectID(),
		ProjectID: projectID,
		Token:     token,
		IssuedBy:  issuedBy,
		CreatedAt: time.Now().UTC(),
	}
	if expiresAt != nil {
		t := expiresAt.UTC()
		inv.ExpiresAt = &t
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invite{}, ErrDuplicate
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// GetByProject returns the project's invite, expired or not.
func (s *Store) GetByProject(ctx context.Context, projectID primitive.ObjectID) (models.Invite, error) {
	return s.findOne(ctx, bson.M{"project_id": projectID})
}

// GetByToken returns the invite holding token, expired or not.
func (s *Store) GetByToken(ctx context.Context, token string) (models.Invite, error) {
	if token == "" {
		return models.Invite{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"token": token})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Invite, error) {
	var inv models.Invite
	if err := s.c.FindOne(ctx, filter).Decode(&inv); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Invite{}, ErrNotFound
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// DeleteByProject removes every invite bound to projectID.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteExpiredForProject removes projectID's invite if it expired at or
// before now.
func (s *Store) DeleteExpiredForProject(ctx context.Context, projectID primitive.ObjectID, now time.Time) error {
	_, err := s.c.DeleteMany(ctx, bson.M{
		"project_id": projectID,
		"expires_at": bson.M{"$lte": now.UTC()},
	})
	return err
}

// DeleteExpired removes every invite that expired at or before now.
// Invites without expires_at are never matched.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func generateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
