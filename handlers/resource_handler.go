package handlers

import (
	"net/http"

	"github.com/bfyxzls/webSecurity/utils"
)

// MessageResponse is the body of the demo resource endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// Message returns a handler that answers with a fixed message. Access control
// is applied by the router's policy table, not here.
func Message(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, MessageResponse{Message: message})
	}
}
