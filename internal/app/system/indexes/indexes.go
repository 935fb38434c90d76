// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
independently and the problems are aggregated so startup fails with the
whole picture rather than the first error.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, set := range []struct {
		coll   string
		models []mongo.IndexModel
	}{
		{"users", userIndexes()},
		{"projects", projectIndexes()},
		{"invites", inviteIndexes()},
		{"roles", roleIndexes()},
		{"tasks", taskIndexes()},
		{"audit_events", auditIndexes()},
	} {
		if err := ensureIndexSet(ctx, db.Collection(set.coll), set.models); err != nil {
			problems = append(problems, set.coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconciling one collection                                                  */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// isDuplicateKeyErr detects E11000 across driver error shapes and vendors.
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo and DocumentDB report IndexOptionsConflict when the same keys exist
// under another name or with other options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

// desired is an index model with its comparison fields pulled out.
type desired struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = isTrue(m.Options.Unique)
	}
	return d
}

func listBySig(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

func createErr(coll *mongo.Collection, d desired, err error) error {
	if isDuplicateKeyErr(err) && d.unique {
		hint := ""
		if coll.Name() == "users" && strings.Contains(d.sig, "email:1") {
			hint = "; find them with " +
				`db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
		}
		return fmt.Errorf("%s(%s): cannot create unique index, duplicates present%s", coll.Name(), d.name, hint)
	}
	return fmt.Errorf("%s(%s): %w", coll.Name(), d.name, err)
}

// recreate drops the index called old and creates d in its place.
func recreate(ctx context.Context, coll *mongo.Collection, old string, d desired) error {
	if _, err := coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("%s(%s): drop %s failed: %w", coll.Name(), d.name, old, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return createErr(coll, d, err)
	}
	return nil
}

// reconcile makes one desired index exist. An index with the same keys is
// reused when its uniqueness matches and renamed when only the name differs;
// otherwise it is dropped and recreated.
func reconcile(ctx context.Context, coll *mongo.Collection, d desired) (string, error) {
	if ex, ok := listBySig(ctx, coll)[d.sig]; ok {
		switch {
		case isTrue(ex.Unique) != d.unique:
			return "recreated", recreate(ctx, coll, ex.Name, d)
		case d.name != "" && ex.Name != d.name:
			return "renamed", recreate(ctx, coll, ex.Name, d)
		default:
			return "reused", nil
		}
	}

	_, err := coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		return "created", nil
	}
	if !isOptionsConflictErr(err) {
		return "", createErr(coll, d, err)
	}

	// Lost a race with another instance, or the server matched on options
	// we do not compare. Look again.
	ex, ok := listBySig(ctx, coll)[d.sig]
	if !ok {
		return "", createErr(coll, d, err)
	}
	if isTrue(ex.Unique) == d.unique {
		return "reused", nil
	}
	return "recreated", recreate(ctx, coll, ex.Name, d)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		d := describe(m)
		start := time.Now()

		action, err := reconcile(ctx, coll, d)
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.unique),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
			errs = append(errs, err.Error())
			continue
		}
		zap.L().Info("index "+action, fields...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Emails are stored normalized, so a plain unique index is enough.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Cascade delete pulls a project id from every user holding it.
		{
			Keys:    bson.D{{Key: "project_ids", Value: 1}},
			Options: options.Index().SetName("idx_users_project_ids"),
		},
		{
			Keys:    bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_fullnameci_id"),
		},
	}
}

func projectIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// "My projects" list, sorted by folded name.
		{
			Keys: bson.D{
				{Key: "members.user_id", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_projects_member_nameci_id"),
		},
		// Deletion sweeper scans by start time; sparse because live
		// projects have no deleting_at.
		{
			Keys:    bson.D{{Key: "deleting_at", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_projects_deleting_at"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_projects_owner"),
		},
	}
}

func inviteIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// At most one token per project; concurrent issuers race on this.
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invites_project"),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invites_token"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_invites_expires_at"),
		},
	}
}

func roleIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_name"),
		},
	}
}

func taskIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "project_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_tasks_project_status_created"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_tasks_project_created"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "assignee_id", Value: 1}},
			Options: options.Index().SetName("idx_tasks_project_assignee"),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_project_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type_timestamp"),
		},
	}
}
