package federated_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/opsforge/go-identity"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockUsers mocks the lookups and writes provisioning performs. The embedded
// interface covers the rest of the repository surface.
type MockUsers struct {
	mock.Mock
	identity.Users
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, email)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return record, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, record *identity.User, criteria ...repository.UpdateCriteria) (*identity.User, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return record, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

// MockRepositoryManager drives provisioning transactions by invoking the
// closure with a zero transaction.
type MockRepositoryManager struct {
	mock.Mock
	users *MockUsers
}

func NewMockRepositoryManager(users *MockUsers) *MockRepositoryManager {
	return &MockRepositoryManager{users: users}
}

func (m *MockRepositoryManager) Users() identity.Users { return m.users }

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return f(ctx, bun.Tx{})
	}
}

// MockMailer records notification sends.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func enabledUser(email string) *identity.User {
	return &identity.User{
		Email:   email,
		Name:    "Pepe Rone",
		Role:    identity.RoleNormal,
		Enabled: true,
	}
}

func pendingUser(email string, expiry time.Time) *identity.User {
	u := enabledUser(email)
	u.Enabled = false
	u.SetVerificationToken("tok-pending", expiry)
	return u
}
