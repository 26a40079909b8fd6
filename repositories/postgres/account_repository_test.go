package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/repositories"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewDBFromConn(conn, zap.NewNop()), mock
}

var accountRowColumns = []string{"id", "username", "password_hash", "authorities", "roles", "enabled", "locked", "created_at", "updated_at"}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts account", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())
		account := models.NewAccount("lind", "$2a$10$hash", []string{"read"}, []string{"ROLE_USER"})

		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(account.ID, "lind", "$2a$10$hash", pq.Array([]string{"read"}), pq.Array([]string{"ROLE_USER"}),
				true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		err := repo.Create(ctx, models.NewAccount("lind", "h", nil, nil))
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
	})

	t.Run("other database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO accounts").WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, models.NewAccount("lind", "h", nil, nil))
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrDuplicate)
		assert.Contains(t, err.Error(), "failed to create account")
	})
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE username = \\$1").
			WithArgs("lind").
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(id.String(), "lind", "$2a$10$hash", "{read,write}", "{ROLE_USER}", true, false, now, now))

		account, err := repo.GetByUsername(ctx, "lind")
		require.NoError(t, err)
		assert.Equal(t, id, account.ID)
		assert.Equal(t, []string{"read", "write"}, account.Authorities)
		assert.Equal(t, []string{"ROLE_USER"}, account.Roles)
		assert.True(t, account.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM accounts").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("query failure is not a not-found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM accounts").WillReturnError(errors.New("timeout"))

		_, err := repo.GetByUsername(ctx, "lind")
		require.Error(t, err)
		assert.NotErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestAccountRepository_ExistsByUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())

	mock.ExpectQuery("SELECT EXISTS").WithArgs("lind").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByUsername(context.Background(), "lind")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM accounts ORDER BY username").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(uuid.NewString(), "admin", "h", "{}", "{ROLE_admin}", true, false, now, now).
			AddRow(uuid.NewString(), "lind", "h", "{read}", "{}", true, true, now, now))

	accounts, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "admin", accounts[0].Username)
	assert.True(t, accounts[1].Locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates flags", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())
		account := models.NewAccount("lind", "h", []string{"read"}, nil)
		account.Locked = true

		mock.ExpectExec("UPDATE accounts").
			WithArgs("lind", sqlmock.AnyArg(), sqlmock.AnyArg(), true, true, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, models.NewAccount("ghost", "h", nil, nil))
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}
