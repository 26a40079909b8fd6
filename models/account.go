package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bfyxzls/webSecurity/internal/auth"
)

// Account is a provisioned login identity as persisted in PostgreSQL
type Account struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Authorities  []string  `json:"authorities" db:"authorities"`
	Roles        []string  `json:"roles" db:"roles"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	Locked       bool      `json:"locked" db:"locked"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates an enabled, unlocked account with an already encoded password hash
func NewAccount(username, passwordHash string, authorities, roles []string) *Account {
	now := time.Now()
	return &Account{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Authorities:  authorities,
		Roles:        roles,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ToPrincipal converts the account into the record consumed by the authenticator
func (a *Account) ToPrincipal() *auth.Principal {
	return auth.NewPrincipal(a.Username, []byte(a.PasswordHash),
		auth.WithAuthorities(a.Authorities...),
		auth.WithRoles(a.Roles...),
		auth.WithEnabled(a.Enabled),
		auth.WithLocked(a.Locked),
	)
}
