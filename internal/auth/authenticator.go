package auth

import (
	"context"
	"errors"
)

// Authenticator verifies presented credentials against a CredentialStore.
type Authenticator struct {
	store   CredentialStore
	encoder PasswordEncoder
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(store CredentialStore, encoder PasswordEncoder) *Authenticator {
	return &Authenticator{
		store:   store,
		encoder: encoder,
	}
}

// Authenticate resolves identifier and verifies credential.
//
// Locked and disabled accounts fail before any comparison, and an empty
// credential is rejected without consulting the encoder. Every failure is
// final for this attempt. A ctx that is cancelled or expired before the
// attempt completes yields ServiceError, even if the credential matched.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, credential string) Result {
	if err := ctx.Err(); err != nil {
		return Failed(ServiceError, err)
	}

	p, err := a.store.Lookup(ctx, identifier)
	switch {
	case errors.Is(err, ErrNotFound):
		return Failed(NotFound, nil)
	case err != nil:
		return Failed(ServiceError, err)
	case p == nil:
		return Failed(ServiceError, ErrNilPrincipal)
	}

	if p.locked {
		return Failed(AccountLocked, nil)
	}
	if !p.enabled {
		return Failed(AccountDisabled, nil)
	}

	if credential == "" {
		return Failed(BadCredential, nil)
	}

	ok, err := a.encoder.Matches(credential, p.hash)
	if err != nil {
		return Failed(ServiceError, err)
	}
	if !ok {
		return Failed(BadCredential, nil)
	}

	// A deadline that passes during the comparison still fails the attempt.
	if err := ctx.Err(); err != nil {
		return Failed(ServiceError, err)
	}

	return Authenticated(p.withoutCredential())
}
