package apiresp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		want   string
	}{
		{
			name:   "ok with fields",
			write:  func(w http.ResponseWriter) { OK(w, http.StatusCreated, map[string]any{"id": "p1"}) },
			status: http.StatusCreated,
			want:   `{"id":"p1","ok":true}`,
		},
		{
			name:   "ok without fields",
			write:  func(w http.ResponseWriter) { OK(w, http.StatusOK, nil) },
			status: http.StatusOK,
			want:   `{"ok":true}`,
		},
		{
			name:   "ok field cannot override ok",
			write:  func(w http.ResponseWriter) { OK(w, http.StatusOK, map[string]any{"ok": false}) },
			status: http.StatusOK,
			want:   `{"ok":true}`,
		},
		{
			name:   "error",
			write:  func(w http.ResponseWriter) { Error(w, http.StatusConflict, "last_administrator", "no admins left") },
			status: http.StatusConflict,
			want:   `{"ok":false,"error":{"code":"last_administrator","message":"no admins left"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("body: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeBody(t *testing.T) {
	type input struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"valid", `{"name":"Apollo"}`, "Apollo", false},
		{"unknown field", `{"name":"Apollo","owner":"x"}`, "", true},
		{"malformed", `{"name":`, "", true},
		{"empty", ``, "", true},
		{"oversized", `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			var in input
			err := DecodeBody(req, &in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && in.Name != tt.want {
				t.Errorf("Name = %q, want %q", in.Name, tt.want)
			}
		})
	}
}

func TestDecodeBody_OversizedIsMaxBytesError(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var in map[string]any
	err := DecodeBody(req, &in)
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		t.Fatalf("err = %v, want *http.MaxBytesError", err)
	}
	if mbe.Limit != MaxBodyBytes {
		t.Errorf("Limit = %d, want %d", mbe.Limit, MaxBodyBytes)
	}
}
