package invites_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/collabhub/internal/app/features/invites"
	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"github.com/dalemusser/collabhub/internal/testutil"
	"github.com/dalemusser/collabhub/internal/testutil/apptest"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type env struct {
	*apptest.App
	router chi.Router
}

func newEnv(t *testing.T, redeemLimit int) *env {
	t.Helper()
	a := apptest.New(t)
	limiter := ratelimit.New(redeemLimit, time.Minute)
	t.Cleanup(limiter.Stop)

	h := invites.NewHandler(a.Membership, limiter, a.Log)
	r := chi.NewRouter()
	r.Mount("/api/projects/{id}/invite", invites.ProjectRoutes(h))
	r.Mount("/api/invites", invites.RedeemRoutes(h))
	return &env{App: a, router: r}
}

func (e *env) do(t *testing.T, method, path string, as primitive.ObjectID) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithUser(httptest.NewRequest(method, path, nil), as, "tester")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestIssueAndRedeem(t *testing.T) {
	e := newEnv(t, 10)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.Fixtures.CreateUser(ctx, "Ada", "ada@example.com")
	joiner := e.Fixtures.CreateUser(ctx, "Jo", "jo@example.com")
	p := e.Fixtures.CreateProject(ctx, "Engine", owner.ID, testutil.Admin(owner.ID))
	issue := "/api/projects/" + p.ID.Hex() + "/invite"

	rec := e.do(t, "POST", issue, owner.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("issue: got %d (%s)", rec.Code, rec.Body.String())
	}
	token, _ := testutil.DecodeJSON(t, rec)["token"].(string)
	if len(token) != 64 {
		t.Fatalf("token: got %q, want 64 hex chars", token)
	}

	rec = e.do(t, "POST", issue, owner.ID)
	if again, _ := testutil.DecodeJSON(t, rec)["token"].(string); again != token {
		t.Errorf("second issue: got %q, want the live token %q", again, token)
	}

	rec = e.do(t, "POST", "/api/invites/"+token+"/redeem", joiner.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := testutil.DecodeJSON(t, rec)["project_id"]; got != p.ID.Hex() {
		t.Errorf("project_id: got %v", got)
	}

	got, err := e.Projects.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if m, ok := got.FindMember(joiner.ID); !ok || m.Role != models.RoleViewer {
		t.Errorf("joiner membership: got %+v, %v", m, ok)
	}

	rec = e.do(t, "POST", "/api/invites/"+token+"/redeem", joiner.ID)
	if rec.Code != http.StatusConflict || testutil.ErrorCode(t, rec) != "already_member" {
		t.Errorf("redeem twice: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestIssue_RequiresAdministrator(t *testing.T) {
	e := newEnv(t, 10)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.Fixtures.CreateUser(ctx, "Ada", "ada@example.com")
	dev := e.Fixtures.CreateUser(ctx, "Dev", "dev@example.com")
	p := e.Fixtures.CreateProject(ctx, "Engine", owner.ID, testutil.Admin(owner.ID), testutil.Developer(dev.ID))

	rec := e.do(t, "POST", "/api/projects/"+p.ID.Hex()+"/invite", dev.ID)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestDisable(t *testing.T) {
	e := newEnv(t, 10)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := e.Fixtures.CreateUser(ctx, "Ada", "ada@example.com")
	joiner := e.Fixtures.CreateUser(ctx, "Jo", "jo@example.com")
	p := e.Fixtures.CreateProject(ctx, "Engine", owner.ID, testutil.Admin(owner.ID))
	path := "/api/projects/" + p.ID.Hex() + "/invite"

	token, _ := testutil.DecodeJSON(t, e.do(t, "POST", path, owner.ID))["token"].(string)

	if rec := e.do(t, "DELETE", path, owner.ID); rec.Code != http.StatusOK {
		t.Fatalf("disable: got %d", rec.Code)
	}
	rec := e.do(t, "POST", "/api/invites/"+token+"/redeem", joiner.ID)
	if rec.Code != http.StatusNotFound || testutil.ErrorCode(t, rec) != "invalid_or_expired_invite" {
		t.Errorf("redeem revoked: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRedeem_UnknownToken(t *testing.T) {
	e := newEnv(t, 10)
	rec := e.do(t, "POST", "/api/invites/deadbeef/redeem", primitive.NewObjectID())
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRedeem_RateLimited(t *testing.T) {
	e := newEnv(t, 2)
	user := primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		if rec := e.do(t, "POST", "/api/invites/nope/redeem", user); rec.Code != http.StatusNotFound {
			t.Fatalf("attempt %d: got %d", i, rec.Code)
		}
	}
	rec := e.do(t, "POST", "/api/invites/nope/redeem", user)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// Budgets are per user.
	if rec := e.do(t, "POST", "/api/invites/nope/redeem", primitive.NewObjectID()); rec.Code != http.StatusNotFound {
		t.Errorf("other user: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
