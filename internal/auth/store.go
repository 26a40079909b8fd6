package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrNotFound is the not-found outcome of CredentialStore.Lookup. It is an
	// expected result, not a store failure.
	ErrNotFound = errors.New("principal not found")

	// ErrNilPrincipal reports a store that returned neither a principal nor an error.
	ErrNilPrincipal = errors.New("credential store returned nil principal")
)

// CredentialStore resolves an identifier to its principal record.
//
// Lookup returns ErrNotFound when the identifier is absent. Any other error
// means the store itself failed.
type CredentialStore interface {
	Lookup(ctx context.Context, identifier string) (*Principal, error)
}

// MemoryStore is an in-memory CredentialStore. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*Principal
}

// NewMemoryStore creates a store holding the given principals.
func NewMemoryStore(principals ...*Principal) *MemoryStore {
	s := &MemoryStore{principals: make(map[string]*Principal, len(principals))}
	for _, p := range principals {
		s.principals[p.id] = p
	}
	return s
}

// Put adds or replaces a principal.
func (s *MemoryStore) Put(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.id] = p
}

// Len returns the number of principals held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.principals)
}

// Lookup implements CredentialStore.
func (s *MemoryStore) Lookup(ctx context.Context, identifier string) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// SeedRecord is one entry of a memory store seed file.
type SeedRecord struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Authorities  []string `json:"authorities"`
	Roles        []string `json:"roles"`
	Enabled      *bool    `json:"enabled,omitempty"`
	Locked       bool     `json:"locked"`
}

// LoadMemoryStore reads a JSON array of SeedRecord from path. Password hashes
// must already be encoded; plaintext passwords are never accepted.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []SeedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	store := NewMemoryStore()
	for i, rec := range records {
		if rec.Username == "" {
			return nil, fmt.Errorf("seed record %d: username is required", i)
		}
		if rec.PasswordHash == "" {
			return nil, fmt.Errorf("seed record %d (%s): password_hash is required", i, rec.Username)
		}
		enabled := true
		if rec.Enabled != nil {
			enabled = *rec.Enabled
		}
		store.Put(NewPrincipal(rec.Username, []byte(rec.PasswordHash),
			WithAuthorities(rec.Authorities...),
			WithRoles(rec.Roles...),
			WithEnabled(enabled),
			WithLocked(rec.Locked),
		))
	}
	return store, nil
}
