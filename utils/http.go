package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// BearerRealm names the protection space in WWW-Authenticate challenges.
const BearerRealm = "websecurity"

// Bearer challenge error codes from RFC 6750 section 3.1. An empty code means
// the request carried no credentials at all.
const (
	BearerInvalidToken      = "invalid_token"
	BearerInsufficientScope = "insufficient_scope"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:       "bad_request",
	http.StatusUnauthorized:     "unauthorized",
	http.StatusForbidden:        "forbidden",
	http.StatusNotFound:         "not_found",
	http.StatusMethodNotAllowed: "method_not_allowed",
	http.StatusConflict:         "conflict",
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteError writes an error body whose error code is derived from status.
// Statuses without a dedicated code are reported as internal_error.
func WriteError(w http.ResponseWriter, status int, message string, details map[string]interface{}) error {
	code, ok := errorCodes[status]
	if !ok {
		code = "internal_error"
	}
	return WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusBadRequest, message, details)
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteError(w, http.StatusNotFound, message, nil)
}

// WriteConflict writes a 409 Conflict response
func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusConflict, message, details)
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteError(w, http.StatusInternalServerError, message, nil)
}

// WriteBearerUnauthorized writes a 401 for a bearer-protected resource and
// sets the WWW-Authenticate challenge. code is empty when no token was sent
// and BearerInvalidToken when the token or its subject was rejected.
func WriteBearerUnauthorized(w http.ResponseWriter, code, message string) error {
	if message == "" {
		message = "Authentication required"
	}
	w.Header().Set("WWW-Authenticate", BearerChallenge(code, message))
	return WriteError(w, http.StatusUnauthorized, message, nil)
}

// WriteInsufficientScope writes a 403 for an authenticated caller whose
// grants do not satisfy requirement.
func WriteInsufficientScope(w http.ResponseWriter, requirement, message string) error {
	if message == "" {
		message = "Access forbidden"
	}
	w.Header().Set("WWW-Authenticate", BearerChallenge(BearerInsufficientScope, message))
	return WriteError(w, http.StatusForbidden, message, map[string]interface{}{
		"requirement": requirement,
	})
}

// BearerChallenge renders a WWW-Authenticate value for the Bearer scheme.
func BearerChallenge(code, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bearer realm=%q", BearerRealm)
	if code != "" {
		fmt.Fprintf(&b, ", error=%q", code)
		if description != "" {
			fmt.Fprintf(&b, ", error_description=%q", quoteSafe(description))
		}
	}
	return b.String()
}

// quoteSafe drops characters RFC 6750 forbids inside error_description.
func quoteSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}, s)
}
