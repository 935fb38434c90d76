package indexes_test

import (
	"testing"

	"github.com/dalemusser/collabhub/internal/app/system/indexes"
	"github.com/dalemusser/collabhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes on %s failed: %v", coll, err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"users":        {"uniq_users_email", "idx_users_project_ids", "idx_users_fullnameci_id"},
		"projects":     {"idx_projects_member_nameci_id", "idx_projects_deleting_at", "idx_projects_owner"},
		"invites":      {"uniq_invites_project", "uniq_invites_token", "idx_invites_expires_at"},
		"roles":        {"uniq_roles_name"},
		"tasks":        {"idx_tasks_project_status_created", "idx_tasks_project_created", "idx_tasks_project_assignee"},
		"audit_events": {"idx_audit_timestamp", "idx_audit_project_timestamp", "idx_audit_user_timestamp", "idx_audit_category_type_timestamp"},
	}
	for coll, names := range expected {
		got := indexNames(t, db, coll)
		for _, name := range names {
			if !got[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesIndexWithSameKeys(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("roles").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("legacy_roles_name"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, db, "roles")
	if got["legacy_roles_name"] || !got["uniq_roles_name"] {
		t.Errorf("indexes = %v, want legacy name replaced", got)
	}
}

func TestEnsureAll_UpgradesToUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("invites").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project_id", Value: 1}},
		Options: options.Index().SetName("uniq_invites_project"),
	})
	if err != nil {
		t.Fatalf("create non-unique index: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	pid := bson.M{"project_id": "p1", "token": "a"}
	if _, err := db.Collection("invites").InsertOne(ctx, pid); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Collection("invites").InsertOne(ctx, bson.M{"project_id": "p1", "token": "b"}); err == nil {
		t.Error("expected duplicate key error for second invite on the same project")
	}
}

func TestEnsureAll_ReportsDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := db.Collection("users").InsertOne(ctx, bson.M{"email": "dup@example.com"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := indexes.EnsureAll(ctx, db); err == nil {
		t.Error("expected EnsureAll to report duplicate emails")
	}
}
