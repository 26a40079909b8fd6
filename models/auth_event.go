package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bfyxzls/webSecurity/internal/auth"
)

// AuthEvent records one login attempt
type AuthEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Outcome   string    `json:"outcome" db:"outcome"` // "authenticated" or a failure reason
	Success   bool      `json:"success" db:"success"`
	RequestID string    `json:"request_id" db:"request_id"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuthEvent model
func (AuthEvent) TableName() string {
	return "auth_events"
}

// NewAuthEvent creates an event for the outcome of authenticating username
func NewAuthEvent(username string, result auth.Result) *AuthEvent {
	return &AuthEvent{
		ID:        uuid.New(),
		Username:  username,
		Outcome:   result.Outcome(),
		Success:   result.IsAuthenticated(),
		Timestamp: time.Now(),
	}
}

// WithRequest sets request metadata
func (e *AuthEvent) WithRequest(requestID, ipAddress, userAgent string) *AuthEvent {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}
