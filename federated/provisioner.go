package federated

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opsforge/go-identity"
)

// OutcomeKind classifies what the callback should do with the caller.
type OutcomeKind string

const (
	// OutcomeToken means the account is enabled and a bearer token was issued
	OutcomeToken OutcomeKind = "token"
	// OutcomePending means the account exists but is not enabled yet
	OutcomePending OutcomeKind = "pending"
	// OutcomeAnonymous means the assertion carried no usable email
	OutcomeAnonymous OutcomeKind = "anonymous"
)

// Outcome is the result of provisioning a verified assertion.
type Outcome struct {
	Kind      OutcomeKind
	Token     string
	Email     string
	Name      string
	Role      identity.UserRole
	User      *identity.User
	IsNewUser bool
}

// ProvisionerConfig configures account provisioning.
type ProvisionerConfig struct {
	// DefaultRole is assigned to auto created accounts, RoleNormal when empty
	DefaultRole identity.UserRole
}

// Provisioner resolves a verified assertion into a local account, creating
// one on first login. Newly created accounts start disabled and hold a
// verification token, so federated signup and email signup converge on the
// same activation path.
type Provisioner struct {
	repo   identity.RepositoryManager
	tokens identity.TokenService
	mailer identity.Mailer
	logger identity.Logger
	config ProvisionerConfig
	now    func() time.Time
}

func NewProvisioner(repo identity.RepositoryManager, tokens identity.TokenService, mailer identity.Mailer, config ProvisionerConfig) *Provisioner {
	if config.DefaultRole == "" {
		config.DefaultRole = identity.RoleNormal
	}
	if mailer == nil {
		mailer = identity.NewAsyncMailer(nil)
	}
	return &Provisioner{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		logger: identity.NewDefaultLogger(),
		config: config,
		now:    time.Now,
	}
}

func (p *Provisioner) WithLogger(logger identity.Logger) *Provisioner {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithClock overrides the time source, useful for tests.
func (p *Provisioner) WithClock(now func() time.Time) *Provisioner {
	if now != nil {
		p.now = now
	}
	return p
}

// Provision maps an assertion to an outcome. It never issues a token for a
// disabled account, and an assertion without an email degrades to an
// anonymous outcome instead of an error.
func (p *Provisioner) Provision(ctx context.Context, assertion *Assertion) (*Outcome, error) {
	if assertion == nil || assertion.Email == "" {
		p.logger.Warn("assertion carried no email, continuing anonymous")
		return &Outcome{Kind: OutcomeAnonymous}, nil
	}

	email := identity.NormalizeEmail(assertion.Email)

	var user *identity.User
	var isNew bool

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = p.repo.Users().GetByEmailTx(ctx, tx, email)
		if err == nil {
			return nil
		}

		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		user, isNew, err = p.createAccount(ctx, tx, email, assertion.Name)
		return err
	})

	if err != nil && identity.IsUniqueViolation(err) {
		// the insert lost a first-login race. Postgres aborts the whole
		// transaction on a failed insert, so the winner's row has to be read
		// on a fresh query after the rollback.
		isNew = false
		user, err = p.repo.Users().GetByEmail(ctx, email)
		if err != nil {
			err = goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve account after insert race")
		}
	}

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, ErrProvisionFailed.Category, ErrProvisionFailed.Message).
			WithTextCode(ErrProvisionFailed.TextCode)
	}

	if !user.Enabled {
		return p.pendingOutcome(ctx, user, isNew)
	}

	token, err := p.tokens.Issue(identity.NewIdentityFromUser(user))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token")
	}

	return &Outcome{
		Kind:      OutcomeToken,
		Token:     token,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		User:      user,
		IsNewUser: isNew,
	}, nil
}

// createAccount inserts the first-login record. Two callbacks racing on the
// same email both end up here, the loser's unique violation surfaces as is so
// Provision can look up the winner's row once the transaction is gone.
func (p *Provisioner) createAccount(ctx context.Context, tx bun.Tx, email, name string) (*identity.User, bool, error) {
	record := &identity.User{
		Email:        email,
		Name:         name,
		PasswordHash: identity.RandomPasswordHash(),
		Role:         p.config.DefaultRole,
		Enabled:      false,
	}
	record.SetVerificationToken(uuid.NewString(), p.now().Add(identity.VerificationTokenTTL))

	created, err := p.repo.Users().CreateTx(ctx, tx, record)
	if err == nil {
		return created, true, nil
	}

	if identity.IsUniqueViolation(err) {
		return nil, false, err
	}

	return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
}

// pendingOutcome makes sure a disabled account holds a live verification
// token and notifies the owner. Mail failures never fail the login.
func (p *Provisioner) pendingOutcome(ctx context.Context, user *identity.User, isNew bool) (*Outcome, error) {
	if !user.HasValidVerificationToken(p.now()) {
		user.SetVerificationToken(uuid.NewString(), p.now().Add(identity.VerificationTokenTTL))

		if _, err := p.repo.Users().Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to refresh verification token")
		}
	}

	if err := p.mailer.SendVerificationEmail(ctx, user.Email, *user.VerificationToken); err != nil {
		p.logger.Error("failed to send verification email", "email", user.Email, "error", err)
	}

	return &Outcome{
		Kind:      OutcomePending,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		User:      user,
		IsNewUser: isNew,
	}, nil
}
