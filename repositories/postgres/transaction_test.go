package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/repositories"
)

func TestInTransaction_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	repo := NewAccountRepository(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		_, ok := GetTransactionFromContext(ctx)
		assert.True(t, ok)
		return repo.Create(ctx, models.NewAccount("lind", "h", nil, nil))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.InTransaction(context.Background(), func(context.Context, repositories.Transaction) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransaction_BeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := tm.InTransaction(context.Background(), func(context.Context, repositories.Transaction) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.False(t, called)
}

func TestInTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = tm.InTransaction(context.Background(), func(context.Context, repositories.Transaction) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransaction_NestedCallJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)
	core, logs := observer.New(zapcore.DebugLevel)
	tm := NewTransactionManager(db, zap.New(core))
	repo := NewAccountRepository(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, outer repositories.Transaction) error {
		return tm.InTransaction(ctx, func(ctx context.Context, inner repositories.Transaction) error {
			assert.Same(t, outer, inner)
			return repo.Create(ctx, models.NewAccount("lind", "h", nil, nil))
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	started := logs.FilterMessage("transaction started").All()
	require.Len(t, started, 1)
	txID := started[0].ContextMap()["tx_id"]
	assert.NotEmpty(t, txID)
	joined := logs.FilterMessage("joining transaction").All()
	require.Len(t, joined, 1)
	assert.Equal(t, txID, joined[0].ContextMap()["tx_id"])
	assert.Equal(t, 1, logs.FilterMessage("transaction committed").Len())
}

func TestTransaction_ContextCarriesItself(t *testing.T) {
	db, mock := newMockDB(t)
	tm := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := tm.Begin(context.Background())
	require.NoError(t, err)
	carried, ok := GetTransactionFromContext(tx.Context())
	require.True(t, ok)
	assert.Same(t, tx, carried)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, tx.Rollback(), "second rollback is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	db := NewDBFromConn(conn, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchema(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
