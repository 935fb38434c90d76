// internal/app/store/tasks/taskstore.go
package taskstore

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

var ErrNotFound = errors.New("task not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

// Create inserts a task in status todo.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.NameCI = text.Fold(t.Name)
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task scoped to its project.
func (s *Store) GetByID(ctx context.Context, projectID, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	err := s.c.FindOne(ctx, bson.M{"_id": id, "project_id": projectID}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// ListByProject returns the project's tasks, optionally filtered by status,
// oldest first.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID, status models.TaskStatus) ([]models.Task, error) {
	filter := bson.M{"project_id": projectID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	tasks := []models.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update describes the mutable fields of a task. Nil fields are left as is;
// ClearAssignee unsets the assignee.
type Update struct {
	Name          *string
	Description   *string
	Status        *models.TaskStatus
	AssigneeID    *primitive.ObjectID
	ClearAssignee bool
}

// Apply writes u to the task and returns the updated document.
func (s *Store) Apply(ctx context.Context, projectID, id primitive.ObjectID, u Update) (models.Task, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
		set["name_ci"] = text.Fold(*u.Name)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.AssigneeID != nil {
		set["assignee_id"] = *u.AssigneeID
	}
	update := bson.M{"$set": set}
	if u.ClearAssignee {
		update["$unset"] = bson.M{"assignee_id": ""}
	}

	var t models.Task
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "project_id": projectID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// UnassignUser clears userID as assignee on every task of the project.
func (s *Store) UnassignUser(ctx context.Context, projectID, userID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"project_id": projectID, "assignee_id": userID},
		bson.M{"$unset": bson.M{"assignee_id": ""}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	return err
}

// Delete removes one task. Returns ErrNotFound if nothing matched.
func (s *Store) Delete(ctx context.Context, projectID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "project_id": projectID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByProject removes every task of the project.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
