package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/config"
	"github.com/bfyxzls/webSecurity/handlers"
	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/internal/observability"
	"github.com/bfyxzls/webSecurity/internal/token"
	"github.com/bfyxzls/webSecurity/middleware"
	"github.com/bfyxzls/webSecurity/repositories"
	"github.com/bfyxzls/webSecurity/repositories/postgres"
	"github.com/bfyxzls/webSecurity/services"
	"github.com/bfyxzls/webSecurity/services/audit"
)

const serviceName = "websecurity"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil for the memory backend
	Logger  *zap.Logger
	Metrics *observability.Metrics // nil when metrics are disabled

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories (postgres backend only)
	Accounts   repositories.AccountRepository
	AuthEvents repositories.AuthEventRepository
	TxManager  repositories.TransactionManager

	// Authentication core
	Store         auth.CredentialStore
	Encoder       *auth.BCryptEncoder
	Authenticator *auth.Authenticator
	Authorizer    *auth.Authorizer
	TokenIssuer   *token.Issuer

	// Services
	Audit          *audit.Service // nil when auditing is disabled
	AccountService *services.AccountService

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	var factory *postgres.RepositoryFactory
	if cfg.UsesDatabase() {
		f, err := postgres.NewRepositoryFactory(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		factory = f
	}

	deps, err := NewDependenciesWithFactory(ctx, cfg, factory, logger)
	if err != nil && factory != nil {
		_ = factory.Close()
	}
	return deps, err
}

// NewDependenciesWithFactory wires dependencies around an existing repository
// factory. factory must be non-nil for the postgres backend and is ignored
// otherwise.
func NewDependenciesWithFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initMetrics(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := deps.initStore(ctx, cfg, factory); err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("store_backend", cfg.Auth.StoreBackend),
		zap.Bool("audit_enabled", deps.Audit != nil),
		zap.Bool("metrics_enabled", deps.Metrics != nil))
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) error {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	metrics, err := observability.NewMetrics(serviceName)
	if err != nil {
		return err
	}
	d.Metrics = metrics
	return nil
}

// initStore selects the credential store backend
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory) error {
	switch cfg.Auth.StoreBackend {
	case config.StoreBackendMemory:
		store, err := auth.LoadMemoryStore(cfg.Auth.MemorySeedFile)
		if err != nil {
			return err
		}
		d.Store = store
		d.Logger.Info("memory credential store loaded",
			zap.String("seed_file", cfg.Auth.MemorySeedFile),
			zap.Int("accounts", store.Len()))
		return nil

	case config.StoreBackendPostgres:
		if factory == nil {
			return errors.New("postgres backend requires a database connection")
		}
		d.RepoFactory = factory
		d.DB = factory.GetDB()

		if err := d.DB.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		if err := d.DB.InitSchema(ctx); err != nil {
			return err
		}

		repos := factory.NewRepositories()
		d.Accounts = repos.Accounts
		d.AuthEvents = repos.AuthEvents
		d.TxManager = factory.GetTransactionManager()
		d.Store = services.NewAccountCredentialStore(d.Accounts)

		d.Logger.Info("database credential store initialized",
			zap.String("connection", cfg.Database.LogString()))
		return nil

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Auth.StoreBackend)
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	encoder, err := auth.NewBCryptEncoder(cfg.Auth.BCryptCost)
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(token.Config{
		Secret: []byte(cfg.Auth.TokenSecret),
		Issuer: cfg.Auth.TokenIssuer,
		TTL:    cfg.Auth.TokenTTL,
		Leeway: cfg.Auth.TokenLeeway,
	})
	if err != nil {
		return err
	}

	d.Encoder = encoder
	d.TokenIssuer = issuer
	d.Authenticator = auth.NewAuthenticator(d.Store, encoder)
	d.Authorizer = auth.NewAuthorizer()

	if d.Accounts != nil {
		d.AccountService = services.NewAccountService(d.Accounts, d.AuthEvents, d.TxManager, encoder, d.Logger)
	}
	return nil
}

// initAudit starts the login audit trail. Events go to auth_events when a
// database is configured and to the log otherwise.
func (d *Dependencies) initAudit(cfg *config.Config) error {
	if !cfg.Audit.Enabled {
		d.Logger.Info("login audit disabled")
		return nil
	}

	var sink audit.Sink = audit.LogSink{Logger: d.Logger}
	if d.AuthEvents != nil {
		sink = d.AuthEvents
	}

	svc := audit.NewService(sink, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := svc.Start(); err != nil {
		return err
	}
	d.Audit = svc
	return nil
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.TokenIssuer, d.Store, d.Authorizer, d.Metrics, d.Logger)

	// A nil *audit.Service must not become a non-nil interface value.
	var recorder handlers.AuditRecorder
	if d.Audit != nil {
		recorder = d.Audit
	}
	d.AuthHandler = handlers.NewAuthHandler(d.Authenticator, d.TokenIssuer, recorder, d.Metrics, handlers.LoginConfig{
		SuccessURL:          cfg.Auth.SuccessURL,
		FailureURL:          cfg.Auth.FailureURL,
		ExposeAccountStatus: cfg.Auth.ExposeAccountStatus,
		Timeout:             cfg.Auth.Timeout,
	}, d.Logger)

	if d.DB != nil {
		d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, cfg.Auth.StoreBackend, d.Logger)
	} else {
		d.HealthHandler = handlers.NewHealthHandler(nil, cfg.Auth.StoreBackend, d.Logger)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the audit trail before the database goes away
	if d.Audit != nil {
		timeout := d.Config.Audit.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	if d.Metrics != nil {
		if err := d.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down metrics: %w", err))
		}
		d.Metrics = nil
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
