package services

import (
	"context"
	"errors"

	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/repositories"
)

// AccountCredentialStore serves auth.CredentialStore lookups from the
// accounts table.
type AccountCredentialStore struct {
	accounts repositories.AccountRepository
}

// NewAccountCredentialStore creates a credential store backed by accounts.
func NewAccountCredentialStore(accounts repositories.AccountRepository) *AccountCredentialStore {
	return &AccountCredentialStore{accounts: accounts}
}

// Lookup implements auth.CredentialStore.
func (s *AccountCredentialStore) Lookup(ctx context.Context, identifier string) (*auth.Principal, error) {
	account, err := s.accounts.GetByUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return account.ToPrincipal(), nil
}
