package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/bfyxzls/webSecurity/config"
	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/repositories/postgres"
	"github.com/bfyxzls/webSecurity/services"
)

func writeSeedFile(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)

	records := []auth.SeedRecord{
		{Username: "lind", PasswordHash: string(hash), Authorities: []string{"read"}, Roles: []string{"ROLE_USER"}},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			StoreBackend:   config.StoreBackendMemory,
			MemorySeedFile: writeSeedFile(t),
			TokenSecret:    "test-secret",
			TokenIssuer:    "websecurity",
			TokenTTL:       time.Hour,
			RolePrefix:     "ROLE_",
			SuccessURL:     "/hello",
			FailureURL:     "/login?error",
			Timeout:        time.Second,
			BCryptCost:     bcrypt.MinCost,
		},
		Audit: config.AuditConfig{
			Enabled:         true,
			BufferSize:      10,
			WorkerCount:     1,
			ShutdownTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
	}
}

func TestNewDependencies_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.Accounts)
	assert.Nil(t, deps.AccountService)
	assert.IsType(t, &auth.MemoryStore{}, deps.Store)
	assert.NotNil(t, deps.Authenticator)
	assert.NotNil(t, deps.Authorizer)
	assert.NotNil(t, deps.TokenIssuer)
	assert.NotNil(t, deps.Audit)
	assert.NotNil(t, deps.Metrics)
	assert.NotNil(t, deps.AuthMiddleware)
	assert.NotNil(t, deps.AuthHandler)
	assert.NotNil(t, deps.HealthHandler)

	result := deps.Authenticator.Authenticate(ctx, "lind", "123456")
	require.True(t, result.IsAuthenticated())
	assert.Equal(t, "lind", result.Principal().ID())

	require.NoError(t, deps.Close(ctx))
	require.NoError(t, deps.Close(ctx), "second close is a no-op")
}

func TestNewDependencies_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = false
	cfg.Observability.MetricsEnabled = false

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Nil(t, deps.Audit)
	assert.Nil(t, deps.Metrics)
	assert.NoError(t, deps.Close(context.Background()))
}

func TestNewDependencies_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"missing seed file", func(c *config.Config) { c.Auth.MemorySeedFile = "/does/not/exist.json" }, "failed to initialize credential store"},
		{"unknown backend", func(c *config.Config) { c.Auth.StoreBackend = "ldap" }, "unknown store backend"},
		{"empty token secret", func(c *config.Config) { c.Auth.TokenSecret = "" }, "failed to initialize authentication"},
		{"bad bcrypt cost", func(c *config.Config) { c.Auth.BCryptCost = 99 }, "failed to initialize authentication"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
			assert.Nil(t, deps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewDependencies_DatabaseConnectionFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.StoreBackend = config.StoreBackendPostgres
	cfg.Database = config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "nobody",
		Database: "nothing",
		SSLMode:  "disable",
	}

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Nil(t, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database")
}

func TestNewDependenciesWithFactory_Postgres(t *testing.T) {
	ctx := context.Background()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	logger := zaptest.NewLogger(t)
	factory := postgres.NewRepositoryFactoryFromDB(postgres.NewDBFromConn(conn, logger), logger)

	cfg := testConfig(t)
	cfg.Auth.StoreBackend = config.StoreBackendPostgres
	cfg.Audit.Enabled = false

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	require.NoError(t, err)

	assert.NotNil(t, deps.DB)
	assert.NotNil(t, deps.Accounts)
	assert.NotNil(t, deps.AuthEvents)
	assert.NotNil(t, deps.TxManager)
	assert.NotNil(t, deps.AccountService)
	assert.IsType(t, &services.AccountCredentialStore{}, deps.Store)
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	require.NoError(t, deps.Close(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDependenciesWithFactory_PostgresRequiresFactory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.StoreBackend = config.StoreBackendPostgres

	_, err := NewDependenciesWithFactory(context.Background(), cfg, nil, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a database connection")
}
