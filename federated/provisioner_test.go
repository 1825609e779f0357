package federated_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/go-identity"
	"github.com/opsforge/go-identity/federated"
)

func newTestTokenService() identity.TokenService {
	return identity.NewTokenService(
		[]byte("test-signing-key"),
		24,
		"test-issuer",
		jwt.ClaimStrings{"test-audience"},
		testLogger{},
	)
}

func newTestProvisioner(users *MockUsers, mailer *MockMailer) *federated.Provisioner {
	return federated.NewProvisioner(
		NewMockRepositoryManager(users),
		newTestTokenService(),
		mailer,
		federated.ProvisionerConfig{},
	).WithLogger(testLogger{})
}

func TestProvisionEnabledAccountGetsToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(enabledUser("pepe.rone@example.com"), nil).Once()

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "PEPE.RONE@Example.com",
		Name:    "Pepe Rone",
	})
	require.NoError(t, err)

	assert.Equal(t, federated.OutcomeToken, outcome.Kind)
	assert.NotEmpty(t, outcome.Token)
	assert.Equal(t, "pepe.rone@example.com", outcome.Email)
	assert.False(t, outcome.IsNewUser)

	users.AssertExpectations(t)
	mailer.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionFirstLoginCreatesDisabledAccount(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	var created *identity.User
	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(2).(*identity.User)
		}).
		Return(nil, nil).Once()
	mailer.On("SendVerificationEmail", mock.Anything, "pepe.rone@example.com", mock.Anything).
		Return(nil).Once()

	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := newTestProvisioner(users, mailer).WithClock(func() time.Time { return issued })

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "pepe.rone@example.com",
		Name:    "Pepe Rone",
	})
	require.NoError(t, err)

	assert.Equal(t, federated.OutcomePending, outcome.Kind)
	assert.Empty(t, outcome.Token)
	assert.True(t, outcome.IsNewUser)

	require.NotNil(t, created)
	assert.False(t, created.Enabled)
	assert.Equal(t, identity.RoleNormal, created.Role)
	assert.NotEmpty(t, created.PasswordHash)
	require.NotNil(t, created.VerificationToken)
	require.NotNil(t, created.VerificationTokenExpiry)
	assert.Equal(t, issued.Add(identity.VerificationTokenTTL), *created.VerificationTokenExpiry)

	users.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestProvisionDisabledAccountNeverGetsToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	user := pendingUser("pepe.rone@example.com", time.Now().Add(time.Hour))
	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(user, nil).Once()
	mailer.On("SendVerificationEmail", mock.Anything, "pepe.rone@example.com", "tok-pending").
		Return(nil).Once()

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "pepe.rone@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, federated.OutcomePending, outcome.Kind)
	assert.Empty(t, outcome.Token)
	// token still valid, no update issued
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mailer.AssertExpectations(t)
}

func TestProvisionRefreshesExpiredVerificationToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	user := pendingUser("pepe.rone@example.com", time.Now().Add(-time.Hour))
	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(user, nil).Once()
	users.On("Update", mock.Anything, user).Return(nil, nil).Once()

	var mailedToken string
	mailer.On("SendVerificationEmail", mock.Anything, "pepe.rone@example.com", mock.Anything).
		Run(func(args mock.Arguments) {
			mailedToken = args.String(2)
		}).
		Return(nil).Once()

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "pepe.rone@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, federated.OutcomePending, outcome.Kind)
	require.NotNil(t, user.VerificationToken)
	assert.NotEqual(t, "tok-pending", *user.VerificationToken)
	assert.Equal(t, *user.VerificationToken, mailedToken)

	users.AssertExpectations(t)
}

func TestProvisionInsertRaceFallsBackToWinnerRow(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	winner := enabledUser("pepe.rone@example.com")
	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("UNIQUE constraint failed: users.email")).Once()
	// the winner's row is read on a fresh query, never inside the transaction
	// the insert just aborted
	users.On("GetByEmail", mock.Anything, "pepe.rone@example.com").
		Return(winner, nil).Once()

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "pepe.rone@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, federated.OutcomeToken, outcome.Kind)
	assert.False(t, outcome.IsNewUser)
	users.AssertExpectations(t)
	users.AssertNumberOfCalls(t, "GetByEmailTx", 1)
}

func TestProvisionMissingEmailContinuesAnonymous(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{Subject: "idp|123"})
	require.NoError(t, err)
	assert.Equal(t, federated.OutcomeAnonymous, outcome.Kind)

	outcome, err = p.Provision(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, federated.OutcomeAnonymous, outcome.Kind)

	users.AssertNotCalled(t, "GetByEmailTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisionMailFailureDoesNotFailLogin(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	mailer := &MockMailer{}

	user := pendingUser("pepe.rone@example.com", time.Now().Add(time.Hour))
	users.On("GetByEmailTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(user, nil).Once()
	mailer.On("SendVerificationEmail", mock.Anything, "pepe.rone@example.com", "tok-pending").
		Return(errors.New("smtp: connection refused")).Once()

	p := newTestProvisioner(users, mailer)

	outcome, err := p.Provision(ctx, &federated.Assertion{
		Subject: "idp|123",
		Email:   "pepe.rone@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, federated.OutcomePending, outcome.Kind)
}
