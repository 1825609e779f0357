package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeVerificationTokenSQL flips the account on and burns the token in a
// single statement. The expiry guard lives in the WHERE clause so a stale
// token can never match, and RETURNING lets us tell a consumed token from a
// missing one without a second query.
var ConsumeVerificationTokenSQL = `UPDATE "users" AS "usr"
SET
	"enabled" = TRUE,
	"verification_token" = NULL,
	"verification_token_expiry" = NULL
WHERE
	"usr"."verification_token" = ?
AND "usr"."verification_token_expiry" > ?
RETURNING *;`

// ConsumePasswordResetTokenSQL swaps the password hash and burns the reset
// token atomically. Same shape as ConsumeVerificationTokenSQL.
var ConsumePasswordResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_reset_token" = NULL,
	"password_reset_token_expiry" = NULL
WHERE
	"usr"."password_reset_token" = ?
AND "usr"."password_reset_token_expiry" > ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
	GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error)
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error)
	ConsumePasswordResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*User, error)
	ConsumePasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time, passwordHash string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetByEmail(ctx context.Context, email string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email, criteria...)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.getByColumnTx(ctx, tx, "email", NormalizeEmail(email), criteria...)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "verification_token", token)
}

func (a *users) GetByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "password_reset_token", token)
}

func (a *users) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string, criteria ...repository.SelectCriteria) (*User, error) {
	record := &User{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*User, error) {
	return a.ConsumeVerificationTokenTx(ctx, a.db, token, now)
}

func (a *users) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumeVerificationTokenSQL, token, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"verification_token": token,
			})
	}

	return res[0], nil
}

func (a *users) ConsumePasswordResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*User, error) {
	return a.ConsumePasswordResetTokenTx(ctx, a.db, token, now, passwordHash)
}

func (a *users) ConsumePasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time, passwordHash string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ConsumePasswordResetTokenSQL, passwordHash, token, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"password_reset_token": token,
			})
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleNormal
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
