// Package apiresp writes the JSON envelope every API endpoint answers with:
//
//	{"ok": true, ...fields}
//	{"ok": false, "error": {"code": "...", "message": "..."}}
package apiresp

import (
	"encoding/json"
	"net/http"
)

// MaxBodyBytes caps the size of a decoded request body.
const MaxBodyBytes = 1 << 20

// ErrorBody is the error member of a failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	OK    bool      `json:"ok"`
	Error ErrorBody `json:"error"`
}

// OK writes status and {"ok": true} merged with fields.
func OK(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["ok"] = true
	write(w, status, body)
}

// Error writes status and the error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, errorEnvelope{OK: false, Error: ErrorBody{Code: code, Message: message}})
}

// DecodeBody decodes a JSON request body into v, rejecting unknown fields.
func DecodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
