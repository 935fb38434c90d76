// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/collabhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("projects", projectsSchema())
	ensure("invites", invitesSchema())
	ensure("roles", rolesSchema())
	ensure("tasks", tasksSchema())

	// Written only by the audit logger; no validator.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure name exists. Losing a creation
// race to another instance is not an error.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	if exists, err := collectionExists(ctx, db, name); err == nil && exists {
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandMatches(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandMatches(err, 48, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandMatches(err, 59, "no such command")
}

func isNotImplemented(err error) bool {
	return commandMatches(err, 115, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func roleEnum() bson.A {
	out := bson.A{}
	for _, r := range models.AllRoles() {
		out = append(out, string(r))
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email"},
			"properties": bson.M{
				"full_name":    nonBlank,
				"full_name_ci": bson.M{"bsonType": "string"},
				"email":        bson.M{"bsonType": "string", "pattern": "^[^@\\s]+@[^@\\s]+$"},
				"status":       bson.M{"enum": bson.A{"active", "disabled"}},
				"project_ids":  bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}},
			},
		},
	}
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "owner_id", "members", "version", "settings"},
			"properties": bson.M{
				"name":     nonBlank,
				"name_ci":  nonBlank,
				"owner_id": bson.M{"bsonType": "objectId"},
				"version":  bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"members": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"user_id", "role"},
						"properties": bson.M{
							"user_id": bson.M{"bsonType": "objectId"},
							"role":    bson.M{"enum": roleEnum()},
						},
					},
				},
				"task_ids": bson.M{"bsonType": bson.A{"array", "null"}, "items": bson.M{"bsonType": "objectId"}},
				"settings": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"link_join_enabled":  bson.M{"bsonType": "bool"},
						"pdf_export_enabled": bson.M{"bsonType": "bool"},
					},
				},
				"deleting_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func invitesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"project_id", "token", "issued_by"},
			"properties": bson.M{
				"project_id": bson.M{"bsonType": "objectId"},
				"token":      bson.M{"bsonType": "string", "pattern": "^[0-9a-f]{64}$"},
				"issued_by":  bson.M{"bsonType": "objectId"},
				"expires_at": bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}

func rolesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name"},
			"properties": bson.M{
				"name": bson.M{"enum": roleEnum()},
			},
		},
	}
}

func tasksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"project_id", "name", "status", "created_by"},
			"properties": bson.M{
				"project_id":  bson.M{"bsonType": "objectId"},
				"name":        nonBlank,
				"status":      bson.M{"enum": bson.A{string(models.TaskTodo), string(models.TaskInProgress), string(models.TaskDone)}},
				"assignee_id": bson.M{"bsonType": "objectId"},
				"created_by":  bson.M{"bsonType": "objectId"},
			},
		},
	}
}
