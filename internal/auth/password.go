package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordEncoder hashes and verifies passwords.
type PasswordEncoder interface {
	// Encode returns a salted one-way hash of raw.
	Encode(raw string) ([]byte, error)
	// Matches reports whether raw matches hash. A non-nil error means the
	// stored hash could not be used, not that the password was wrong.
	Matches(raw string, hash []byte) (bool, error)
}

// MaxPasswordBytes is the longest input bcrypt hashes without truncation.
const MaxPasswordBytes = 72

// BCryptEncoder is a PasswordEncoder backed by bcrypt. Verification runs in
// constant time with respect to the stored hash.
type BCryptEncoder struct {
	cost int
}

// NewBCryptEncoder creates an encoder with the given cost. Zero selects
// bcrypt.DefaultCost.
func NewBCryptEncoder(cost int) (*BCryptEncoder, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BCryptEncoder{cost: cost}, nil
}

// Encode implements PasswordEncoder.
func (e *BCryptEncoder) Encode(raw string) ([]byte, error) {
	if len(raw) > MaxPasswordBytes {
		return nil, fmt.Errorf("bcrypt encode: password is %d bytes, limit is %d", len(raw), MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt encode: %w", err)
	}
	return hash, nil
}

// Matches implements PasswordEncoder. Inputs longer than MaxPasswordBytes
// never match, since bcrypt would only compare their prefix.
func (e *BCryptEncoder) Matches(raw string, hash []byte) (bool, error) {
	if len(raw) > MaxPasswordBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(raw))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("bcrypt compare: %w", err)
}
