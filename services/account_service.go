package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/repositories"
	"github.com/bfyxzls/webSecurity/utils"
)

// ProvisionRequest describes an account to create
type ProvisionRequest struct {
	Username    string   `validate:"required,max=255,grantname"`
	Password    string   `validate:"required,min=6,maxbytes=72"`
	Authorities []string `validate:"dive,grantname"`
	Roles       []string `validate:"dive,grantname"`
	Disabled    bool
	Locked      bool
}

// GrantUpdate changes what an existing account holds. Nil slices and flags
// are left unchanged.
type GrantUpdate struct {
	Authorities []string `validate:"omitempty,dive,grantname"`
	Roles       []string `validate:"omitempty,dive,grantname"`
	Enabled     *bool
	Locked      *bool
}

// LoginHistory summarizes recent login attempts for one account
type LoginHistory struct {
	Username string              `json:"username"`
	Since    time.Time           `json:"since"`
	Failures int                 `json:"failures"`
	Recent   []*models.AuthEvent `json:"recent"`
}

// AccountService provisions and maintains accounts
type AccountService struct {
	accounts repositories.AccountRepository
	events   repositories.AuthEventRepository
	txMgr    repositories.TransactionManager
	encoder  auth.PasswordEncoder
	logger   *zap.Logger
}

// NewAccountService creates a new account service. events may be nil, in
// which case LoginHistory is unavailable.
func NewAccountService(
	accounts repositories.AccountRepository,
	events repositories.AuthEventRepository,
	txMgr repositories.TransactionManager,
	encoder auth.PasswordEncoder,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		events:   events,
		txMgr:    txMgr,
		encoder:  encoder,
		logger:   logger,
	}
}

// Provision creates an account with a freshly encoded password. The
// existence check and insert share one transaction.
func (s *AccountService) Provision(ctx context.Context, req ProvisionRequest) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, validationDomainError(err)
	}

	hash, err := s.encoder.Encode(req.Password)
	if err != nil {
		return nil, WrapInternal("failed to encode password", err)
	}

	account := models.NewAccount(req.Username, string(hash), dedupe(req.Authorities), dedupe(req.Roles))
	account.Enabled = !req.Disabled
	account.Locked = req.Locked

	created, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
		exists, err := s.accounts.ExistsByUsername(ctx, account.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateUsername
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, repositories.ErrDuplicate) {
			return nil, NewDomainError(ErrorTypeConflict, ErrDuplicateUsername.Message, err).
				WithDetail("username", account.Username)
		}
		return nil, WrapInternal("failed to provision account", err)
	}

	s.logger.Info("account provisioned",
		zap.String("username", created.Username),
		zap.Strings("authorities", created.Authorities),
		zap.Strings("roles", created.Roles),
	)
	return created, nil
}

// UpdateGrants replaces authorities, roles or flags of an existing account.
// Changes apply to the next request because principals are re-read per request.
func (s *AccountService) UpdateGrants(ctx context.Context, username string, update GrantUpdate) (*models.Account, error) {
	if err := utils.ValidateStruct(&update); err != nil {
		return nil, validationDomainError(err)
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Account, error) {
		account, err := s.accounts.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, NewDomainError(ErrorTypeNotFound, ErrAccountNotFound.Message, err).WithDetail("username", username)
			}
			return nil, WrapInternal("failed to load account", err)
		}

		if update.Authorities != nil {
			account.Authorities = dedupe(update.Authorities)
		}
		if update.Roles != nil {
			account.Roles = dedupe(update.Roles)
		}
		if update.Enabled != nil {
			account.Enabled = *update.Enabled
		}
		if update.Locked != nil {
			account.Locked = *update.Locked
		}
		account.UpdatedAt = time.Now()

		if err := s.accounts.Update(ctx, account); err != nil {
			return nil, WrapInternal("failed to update account", err)
		}
		s.logger.Info("account updated", zap.String("username", username))
		return account, nil
	})
}

// List returns accounts ordered by username
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, WrapInternal("failed to list accounts", err)
	}
	return accounts, nil
}

// LoginHistory reports failed attempts for username since the given time and
// its most recent events, newest first. It reads the audit trail only; nothing
// here changes whether the account can log in.
func (s *AccountService) LoginHistory(ctx context.Context, username string, since time.Time, limit int) (*LoginHistory, error) {
	if s.events == nil {
		return nil, NewDomainError(ErrorTypeInternal, "login audit trail is not configured", nil)
	}
	if strings.TrimSpace(username) == "" {
		return nil, NewDomainError(ErrorTypeValidation, ErrInvalidInput.Message, nil).
			WithDetail("username", "username is required")
	}
	if limit <= 0 {
		limit = 20
	}

	failures, err := s.events.CountFailuresSince(ctx, username, since)
	if err != nil {
		return nil, WrapInternal("failed to count login failures", err)
	}
	recent, err := s.events.GetByUsername(ctx, username, limit)
	if err != nil {
		return nil, WrapInternal("failed to load login events", err)
	}

	return &LoginHistory{
		Username: username,
		Since:    since,
		Failures: failures,
		Recent:   recent,
	}, nil
}

func validationDomainError(err error) error {
	domainErr := NewDomainError(ErrorTypeValidation, ErrInvalidInput.Message, err)
	for field, msg := range utils.GetValidationFields(err) {
		domainErr.WithDetail(field, msg)
	}
	return domainErr
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
