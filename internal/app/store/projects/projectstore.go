// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/collabhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("project not found")
	// ErrVersionConflict means the project exists but its version no longer
	// matches the snapshot the caller validated against.
	ErrVersionConflict = errors.New("project was modified concurrently")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

// Create inserts a new project at version 1.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.NameCI = text.Fold(p.Name)
	if p.Members == nil {
		p.Members = []models.Member{}
	}
	if p.TaskIDs == nil {
		p.TaskIDs = []primitive.ObjectID{}
	}
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID returns the project, including one that is being deleted.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// ListByMember returns live projects where userID is in the member list,
// sorted by name.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	filter := bson.M{
		"members.user_id": userID,
		"deleting_at":     bson.M{"$exists": false},
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	projects := []models.Project{}
	if err := cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateMembers replaces the member list if the stored version still equals
// expectedVersion. Returns the new version.
func (s *Store) UpdateMembers(ctx context.Context, id primitive.ObjectID, expectedVersion int64, members []models.Member) (int64, error) {
	return s.versionedSet(ctx, id, expectedVersion, bson.M{"members": members})
}

// UpdateSettings replaces the settings if the stored version still equals
// expectedVersion. Returns the new version.
func (s *Store) UpdateSettings(ctx context.Context, id primitive.ObjectID, expectedVersion int64, settings models.ProjectSettings) (int64, error) {
	return s.versionedSet(ctx, id, expectedVersion, bson.M{"settings": settings})
}

// MarkDeleting stamps deleting_at if the stored version still equals
// expectedVersion. Returns the new version.
func (s *Store) MarkDeleting(ctx context.Context, id primitive.ObjectID, expectedVersion int64, at time.Time) (int64, error) {
	return s.versionedSet(ctx, id, expectedVersion, bson.M{"deleting_at": at.UTC()})
}

func (s *Store) versionedSet(ctx context.Context, id primitive.ObjectID, expectedVersion int64, set bson.M) (int64, error) {
	set["updated_at"] = time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 0 {
		n, err := s.c.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// AddTask records taskID on the project. Task references do not touch the
// membership version.
func (s *Store) AddTask(ctx context.Context, id, taskID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"task_ids": taskID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveTask drops taskID from the project. Missing projects are ignored.
func (s *Store) RemoveTask(ctx context.Context, id, taskID primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"task_ids": taskID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	return err
}

// ListDeleting returns projects whose cascade delete started before cutoff.
func (s *Store) ListDeleting(ctx context.Context, cutoff time.Time, limit int64) ([]models.Project, error) {
	filter := bson.M{"deleting_at": bson.M{"$lte": cutoff.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "deleting_at", Value: 1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var projects []models.Project
	if err := cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Delete removes the project document. Deleting a missing project is not an
// error so the final cascade step can be repeated.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
