package identity

import (
	"context"
	"fmt"
	"time"
)

// AsyncMailer decorates a Mailer so deliveries happen off the request path.
// Send failures are logged and swallowed: a broken mail relay must never fail
// the registration or reset flow that triggered it.
type AsyncMailer struct {
	mailer  Mailer
	logger  Logger
	timeout time.Duration
}

// NewAsyncMailer wraps the given mailer. A nil mailer falls back to the
// log-only mailer.
func NewAsyncMailer(mailer Mailer) *AsyncMailer {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AsyncMailer{
		mailer:  mailer,
		logger:  defLogger{},
		timeout: time.Second * 30,
	}
}

func (m *AsyncMailer) WithLogger(logger Logger) *AsyncMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *AsyncMailer) WithTimeout(timeout time.Duration) *AsyncMailer {
	if timeout > 0 {
		m.timeout = timeout
	}
	return m
}

func (m *AsyncMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.dispatch("verification", email, func(ctx context.Context) error {
		return m.mailer.SendVerificationEmail(ctx, email, token)
	})
	return nil
}

func (m *AsyncMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	m.dispatch("password reset", email, func(ctx context.Context) error {
		return m.mailer.SendPasswordResetEmail(ctx, email, token)
	})
	return nil
}

func (m *AsyncMailer) dispatch(kind, email string, send func(context.Context) error) {
	// detach from the request context, the caller returns before delivery
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			m.logger.Error("failed to send "+kind+" email", "email", email, "error", err)
		}
	}()
}

var _ Mailer = (*AsyncMailer)(nil)

// LogMailer writes notification links to stdout. Default for development
// setups without a mail relay.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	printEmailNotification(email, "/verify-email/"+token)
	return nil
}

func (LogMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	printEmailNotification(email, "/reset-password/"+token)
	return nil
}

var _ Mailer = LogMailer{}

func printEmailNotification(email, link string) {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: %s\n", link)
}
