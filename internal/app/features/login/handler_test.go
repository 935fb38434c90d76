package login_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/collabhub/internal/app/features/login"
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/dalemusser/collabhub/internal/testutil"
	"github.com/dalemusser/collabhub/internal/testutil/apptest"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*login.Handler, *apptest.App) {
	t.Helper()
	a := apptest.New(t)
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only-0123456789", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	limiter := ratelimit.NewMemoryLoginLimiter(100, time.Minute, 3, time.Minute)
	t.Cleanup(limiter.Stop)

	return login.NewHandler(a.Users, sessionMgr, limiter, a.AuditLog, logger), a
}

func register(t *testing.T, h *login.Handler, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.JSONRequest(t, "POST", "/api/auth/register", map[string]string{
		"full_name": name,
		"email":     email,
		"password":  password,
	})
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	return rec
}

func loginAs(t *testing.T, h *login.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.JSONRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, req)
	return rec
}

func TestHandleRegister_Success(t *testing.T) {
	h, a := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := register(t, h, "Ada Lovelace", "Ada@Example.com", "correct horse")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("expected a session cookie")
	}

	u, err := a.Users.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Error("password must be stored as a hash")
	}

	n, _ := a.DB.Collection("audit_events").CountDocuments(ctx, bson.M{"event_type": "user_registered"})
	if n != 1 {
		t.Errorf("expected one user_registered audit event, got %d", n)
	}
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	h, _ := newTestHandler(t)

	if rec := register(t, h, "Ada", "ada@example.com", "correct horse"); rec.Code != http.StatusCreated {
		t.Fatalf("first register: got %d", rec.Code)
	}
	rec := register(t, h, "Ada Again", "ADA@example.com", "another pass")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
	if code := testutil.ErrorCode(t, rec); code != "email_taken" {
		t.Errorf("code: got %q, want %q", code, "email_taken")
	}
}

func TestHandleRegister_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name, fullName, email, password string
	}{
		{"missing name", "", "a@example.com", "long enough"},
		{"bad email", "Ada", "not-an-email", "long enough"},
		{"short password", "Ada", "a@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := register(t, h, tt.fullName, tt.email, tt.password)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	h, a := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if rec := register(t, h, "Grace Hopper", "grace@example.com", "cobol forever"); rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d", rec.Code)
	}

	rec := loginAs(t, h, "grace@example.com", "cobol forever")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("expected a session cookie")
	}

	rec = loginAs(t, h, "grace@example.com", "wrong password")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	rec = loginAs(t, h, "nobody@example.com", "whatever")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if testutil.ErrorCode(t, rec) != "invalid_credentials" {
		t.Error("unknown user and wrong password must be indistinguishable")
	}

	n, _ := a.DB.Collection("audit_events").CountDocuments(ctx, bson.M{"category": "auth", "success": false})
	if n != 2 {
		t.Errorf("expected two failed auth events, got %d", n)
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	h, _ := newTestHandler(t)

	for i := 0; i < 3; i++ {
		loginAs(t, h, "target@example.com", "guess")
	}
	rec := loginAs(t, h, "target@example.com", "guess")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if code := testutil.ErrorCode(t, rec); code != "rate_limited" {
		t.Errorf("code: got %q, want %q", code, "rate_limited")
	}
}
