package logout_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/collabhub/internal/app/features/logout"
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/dalemusser/collabhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *logout.Handler {
	t.Helper()
	logger := zap.NewNop()
	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only-0123456789", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	// A nil audit logger is a no-op.
	return logout.NewHandler(sessionMgr, nil, logger)
}

func TestServeLogout_ExpiresCookie(t *testing.T) {
	h := newTestHandler(t)

	req := testutil.WithUser(httptest.NewRequest("POST", "/api/auth/logout", nil), primitive.NewObjectID(), "Ada")
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "test-session=") {
		t.Fatalf("expected session cookie to be rewritten, got %q", cookie)
	}
	if !strings.Contains(cookie, "Max-Age=0") {
		t.Errorf("expected cookie to expire, got %q", cookie)
	}
}

func TestServeLogout_Anonymous(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeLogout(rec, httptest.NewRequest("POST", "/api/auth/logout", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
}
