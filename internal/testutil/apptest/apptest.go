// Package apptest wires the real stores and services over a test database
// for handler tests.
package apptest

import (
	"testing"

	"github.com/dalemusser/collabhub/internal/app/store/audit"
	invitestore "github.com/dalemusser/collabhub/internal/app/store/invites"
	projectstore "github.com/dalemusser/collabhub/internal/app/store/projects"
	rolestore "github.com/dalemusser/collabhub/internal/app/store/roles"
	taskstore "github.com/dalemusser/collabhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/collabhub/internal/app/store/users"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/projecttasks"
	"github.com/dalemusser/collabhub/internal/app/system/txn"
	"github.com/dalemusser/collabhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// App bundles everything a handler under test may need.
type App struct {
	DB       *mongo.Database
	Fixtures *testutil.Fixtures
	Log      *zap.Logger

	Users    *userstore.Store
	Projects *projectstore.Store
	Invites  *invitestore.Store
	Tasks    *taskstore.Store
	Roles    *rolestore.Store
	Audit    *audit.Store

	AuditLog     *auditlog.Logger
	Membership   *membership.Service
	ProjectTasks *projecttasks.Service
}

// New returns an App over a fresh test database. The test is skipped when
// MongoDB is unreachable.
func New(t *testing.T) *App {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := zap.NewNop()

	a := &App{
		DB:       db,
		Fixtures: testutil.NewFixtures(t, db),
		Log:      log,
		Users:    userstore.New(db),
		Projects: projectstore.New(db),
		Invites:  invitestore.New(db),
		Tasks:    taskstore.New(db),
		Roles:    rolestore.New(db),
		Audit:    audit.New(db),
	}
	a.AuditLog = auditlog.New(a.Audit, log, auditlog.Config{Auth: "db", Membership: "db"})
	a.Membership = membership.New(membership.Deps{
		Projects: a.Projects,
		Users:    a.Users,
		Invites:  a.Invites,
		Tasks:    a.Tasks,
		Tx:       txn.New(db.Client(), log),
		Audit:    a.AuditLog,
		Log:      log,
	}, membership.Config{})
	a.ProjectTasks = projecttasks.New(a.Membership, a.Tasks, a.Projects, a.AuditLog, log)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := a.Roles.EnsureSeeded(ctx); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return a
}
