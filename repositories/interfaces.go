package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/bfyxzls/webSecurity/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// AccountRepository handles account data operations
type AccountRepository interface {
	// Create inserts a new account. Returns ErrDuplicate if the username is taken.
	Create(ctx context.Context, account *models.Account) error

	// GetByUsername retrieves an account by username. Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*models.Account, error)

	// ExistsByUsername reports whether an account with the username exists
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// List retrieves accounts ordered by username with pagination
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)

	// Update updates authorities, roles and account flags
	Update(ctx context.Context, account *models.Account) error
}

// AuthEventRepository handles login audit trail operations
type AuthEventRepository interface {
	// Insert inserts a new auth event
	Insert(ctx context.Context, event *models.AuthEvent) error

	// GetByUsername retrieves the most recent events for a username
	GetByUsername(ctx context.Context, username string, limit int) ([]*models.AuthEvent, error)

	// CountFailuresSince counts failed attempts for a username since the given time
	CountFailuresSince(ctx context.Context, username string, since time.Time) (int, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts   AccountRepository
	AuthEvents AuthEventRepository
}
