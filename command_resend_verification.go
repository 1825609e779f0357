package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(user *User)
}

func (e ResendVerificationMessage) Type() string { return "user.resend_verification" }

// ResendVerificationHandler replaces the stored verification token with a
// fresh one and mails the new link. The previous token stops working the
// moment the new one is persisted.
type ResendVerificationHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
	now    func() time.Time
}

func NewResendVerificationHandler(repo RepositoryManager, mailer Mailer) *ResendVerificationHandler {
	if mailer == nil {
		mailer = NewAsyncMailer(nil)
	}
	return &ResendVerificationHandler{
		repo:   repo,
		mailer: mailer,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationHandler) WithClock(now func() time.Time) *ResendVerificationHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification resend")
		}

		if user.Enabled {
			return ErrAlreadyVerified
		}

		user.SetVerificationToken(uuid.NewString(), h.now().Add(VerificationTokenTTL))

		if _, err := h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new verification token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification resend transaction failed")
	}

	if err := h.mailer.SendVerificationEmail(ctx, user.Email, *user.VerificationToken); err != nil {
		h.logger.Error("failed to send verification email", "email", user.Email, "error", err)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
