package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token" doc:"Single use email verification token"`
	OnResponse func(user *User)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

// VerifyEmailHandler consumes a verification token and enables the account.
// Consume and clear happen in one statement so a token can only ever succeed
// once, no matter how many requests race on it.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	logger Logger
	now    func() time.Time
}

func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) WithClock(now func() time.Time) *VerifyEmailHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return goerrors.New("verification token is required", goerrors.CategoryBadInput)
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().ConsumeVerificationTokenTx(ctx, tx, event.Token, h.now())
		if err == nil {
			return nil
		}

		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification token")
		}

		// the atomic update matched nothing: tell an expired token apart
		// from one that never existed or was already used
		if stale, lookupErr := h.repo.Users().GetByVerificationTokenTx(ctx, tx, event.Token); lookupErr == nil {
			if !stale.HasValidVerificationToken(h.now()) {
				return ErrTokenExpired
			}
		}

		return goerrors.New("invalid or already used verification token", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify email")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
