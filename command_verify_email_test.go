package identity_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/go-identity"
)

func TestVerifyEmailHandlerEnablesAccount(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := NewMockRepositoryManager(users)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verified := &identity.User{Email: "pepe.rone@example.com", Enabled: true}

	users.On("ConsumeVerificationTokenTx", mock.Anything, mock.Anything, "tok-live", now).
		Return(verified, nil).Once()

	var result *identity.User
	handler := identity.NewVerifyEmailHandler(repo).
		WithLogger(testLogger{}).
		WithClock(func() time.Time { return now })

	err := handler.Execute(ctx, identity.VerifyEmailMessage{
		Token: "tok-live",
		OnResponse: func(user *identity.User) {
			result = user
		},
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Enabled)

	users.AssertExpectations(t)
}

func TestVerifyEmailHandlerUnknownToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := NewMockRepositoryManager(users)

	now := time.Now()

	users.On("ConsumeVerificationTokenTx", mock.Anything, mock.Anything, "tok-missing", mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("GetByVerificationTokenTx", mock.Anything, mock.Anything, "tok-missing").
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := identity.NewVerifyEmailHandler(repo).WithClock(func() time.Time { return now })
	err := handler.Execute(ctx, identity.VerifyEmailMessage{Token: "tok-missing"})

	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
	assert.False(t, identity.IsTokenExpiredError(err))

	users.AssertExpectations(t)
}

func TestVerifyEmailHandlerExpiredToken(t *testing.T) {
	ctx := context.Background()
	users := &MockUsers{}
	repo := NewMockRepositoryManager(users)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := &identity.User{Email: "old@example.com"}
	stale.SetVerificationToken("tok-stale", now.Add(-time.Hour))

	// the consuming update matches nothing because the expiry guard fails
	users.On("ConsumeVerificationTokenTx", mock.Anything, mock.Anything, "tok-stale", now).
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("GetByVerificationTokenTx", mock.Anything, mock.Anything, "tok-stale").
		Return(stale, nil).Once()

	handler := identity.NewVerifyEmailHandler(repo).WithClock(func() time.Time { return now })
	err := handler.Execute(ctx, identity.VerifyEmailMessage{Token: "tok-stale"})

	require.Error(t, err)
	assert.True(t, identity.IsTokenExpiredError(err))

	users.AssertExpectations(t)
}

func TestVerifyEmailHandlerEmptyToken(t *testing.T) {
	users := &MockUsers{}
	handler := identity.NewVerifyEmailHandler(NewMockRepositoryManager(users))

	err := handler.Execute(context.Background(), identity.VerifyEmailMessage{})
	require.Error(t, err)

	users.AssertNotCalled(t, "ConsumeVerificationTokenTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
