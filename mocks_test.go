package identity_test

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

// MockUsers mocks the methods the handlers exercise. The embedded interface
// covers the rest of the repository surface.
type MockUsers struct {
	mock.Mock
	identity.Users
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return record, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
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

func (m *MockUsers) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*identity.User, error) {
	args := m.Called(ctx, tx, token)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *MockUsers) GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*identity.User, error) {
	args := m.Called(ctx, tx, token)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, record *identity.User, criteria ...repository.UpdateCriteria) (*identity.User, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return record, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.UpdateCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	if args.Get(0) == nil {
		return record, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUsers) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*identity.User, error) {
	args := m.Called(ctx, tx, token, now)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

func (m *MockUsers) ConsumePasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time, passwordHash string) (*identity.User, error) {
	args := m.Called(ctx, tx, token, now, passwordHash)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

// MockRepositoryManager drives handler transactions by invoking the closure
// with a zero transaction.
type MockRepositoryManager struct {
	mock.Mock
	users *MockUsers
}

func NewMockRepositoryManager(users *MockUsers) *MockRepositoryManager {
	return &MockRepositoryManager{users: users}
}

func (m *MockRepositoryManager) Users() identity.Users {
	return m.users
}

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

// testIdentity is a minimal identity.Identity for token tests.
type testIdentity struct {
	id      string
	email   string
	name    string
	role    string
	enabled bool
}

func (t testIdentity) ID() string    { return t.id }
func (t testIdentity) Email() string { return t.email }
func (t testIdentity) Name() string  { return t.name }
func (t testIdentity) Role() string  { return t.role }
func (t testIdentity) Enabled() bool { return t.enabled }
