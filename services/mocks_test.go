package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bfyxzls/webSecurity/models"
)

// MockAccountRepository is a mock implementation of repositories.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	args := m.Called(ctx, username)
	if a := args.Get(0); a != nil {
		return a.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	args := m.Called(ctx, limit, offset)
	if a := args.Get(0); a != nil {
		return a.([]*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockAuthEventRepository is a mock implementation of repositories.AuthEventRepository
type MockAuthEventRepository struct {
	mock.Mock
}

func (m *MockAuthEventRepository) Insert(ctx context.Context, event *models.AuthEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuthEventRepository) GetByUsername(ctx context.Context, username string, limit int) ([]*models.AuthEvent, error) {
	args := m.Called(ctx, username, limit)
	if e := args.Get(0); e != nil {
		return e.([]*models.AuthEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthEventRepository) CountFailuresSince(ctx context.Context, username string, since time.Time) (int, error) {
	args := m.Called(ctx, username, since)
	return args.Int(0), args.Error(1)
}
