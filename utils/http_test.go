package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusAccepted, map[string]string{"user": "lind"}))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"user":"lind"}`, w.Body.String())
}

func TestWriteJSON_NilBody(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusOK, nil))
	assert.Empty(t, w.Body.String())
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, "hello"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":"hello"}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name        string
		write       func(http.ResponseWriter) error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{"bearer unauthorized default", func(w http.ResponseWriter) error { return WriteBearerUnauthorized(w, "", "") },
			http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"bearer unauthorized custom", func(w http.ResponseWriter) error { return WriteBearerUnauthorized(w, BearerInvalidToken, "Token expired") },
			http.StatusUnauthorized, "unauthorized", "Token expired"},
		{"insufficient scope default", func(w http.ResponseWriter) error { return WriteInsufficientScope(w, "hasAuthority('write')", "") },
			http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found default", func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			http.StatusNotFound, "not_found", "Resource not found"},
		{"conflict", func(w http.ResponseWriter) error { return WriteConflict(w, "username already exists", nil) },
			http.StatusConflict, "conflict", "username already exists"},
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "Validation failed", nil) },
			http.StatusBadRequest, "bad_request", "Validation failed"},
		{"internal default", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status    int
		wantError string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not_found"},
		{http.StatusMethodNotAllowed, "method_not_allowed"},
		{http.StatusConflict, "conflict"},
		{http.StatusServiceUnavailable, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "msg", map[string]interface{}{"k": "v"}))

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, "v", resp.Details["k"])
		})
	}
}

func TestBearerChallenge(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        string
	}{
		{"no credentials", "", "Missing or invalid authorization", `Bearer realm="websecurity"`},
		{"invalid token", BearerInvalidToken, "Token expired", `Bearer realm="websecurity", error="invalid_token", error_description="Token expired"`},
		{"unsafe characters dropped", BearerInsufficientScope, "needs \"write\"\n", `Bearer realm="websecurity", error="insufficient_scope", error_description="needs write"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BearerChallenge(tt.code, tt.description))
		})
	}
}

func TestWriteBearerUnauthorized_SetsChallenge(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteBearerUnauthorized(w, BearerInvalidToken, "Invalid token"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer realm="websecurity", error="invalid_token", error_description="Invalid token"`, w.Header().Get("WWW-Authenticate"))
}

func TestWriteInsufficientScope(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteInsufficientScope(w, "hasAuthority('write')", "Insufficient permissions"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`)
	assert.Equal(t, "hasAuthority('write')", decodeError(t, w).Details["requirement"])
}
