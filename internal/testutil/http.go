package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithUser adds a signed-in user to the request context.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, userID primitive.ObjectID, name string) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:    userID.Hex(),
		Name:  name,
		Email: "test@example.com",
	})
}

// JSONRequest builds a request whose body is v encoded as JSON.
func JSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if v != nil {
		if err := json.NewEncoder(&body).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes a recorder body into a generic map.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// ErrorCode extracts error.code from an {"ok":false,"error":{...}} body.
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := DecodeJSON(t, rec)
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}
