package account

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ApplyResetPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_code" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// AccountStore is the credential store consumed by the AccountManager. The
// bun-backed Users repository implements it; tests substitute a mock. Finder
// names stay clear of the generic repository surface so Users can embed both.
type AccountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Register persists a new account. With autoActivate the account is
	// created already activated.
	Register(ctx context.Context, user *User, autoActivate bool) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)

	// IssueActivationCode stores and returns a fresh activation secret,
	// superseding any previous one.
	IssueActivationCode(ctx context.Context, user *User) (string, error)
	// VerifyAndActivate activates the account when the secret matches the
	// stored activation secret.
	VerifyAndActivate(ctx context.Context, user *User, secret string) (bool, error)
	IssueResetCode(ctx context.Context, user *User) (string, error)
	// ApplyResetPassword sets a new password hash when the secret matches the
	// stored reset secret, clearing the secret on success.
	ApplyResetPassword(ctx context.Context, user *User, secret, passwordHash string) (bool, error)

	TouchLastSeen(ctx context.Context, user *User) error
	TouchIPAddress(ctx context.Context, user *User, ip string) error
}

// Users is the full repository surface for the User model.
type Users interface {
	repository.Repository[*User]
	AccountStore
}

type users struct {
	repository.Repository[*User]
	db               *bun.DB
	deterministicIDs bool
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithDeterministicIDs derives user IDs from the email via hashid instead of
// random UUIDs. Useful for idempotent imports.
func WithDeterministicIDs() UsersOption {
	return func(u *users) {
		u.deterministicIDs = true
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
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

	repoUsers := &users{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.getByColumn(ctx, "id", id.String())
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumn(ctx, "email", normalizeEmail(email))
}

func (a *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return a.getByColumn(ctx, "username", strings.TrimSpace(username))
}

func (a *users) getByColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || strings.Contains(err.Error(), "no rows") {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.existsByColumn(ctx, "email", normalizeEmail(email))
}

func (a *users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.existsByColumn(ctx, "username", strings.TrimSpace(username))
}

func (a *users) existsByColumn(ctx context.Context, column, value string) (bool, error) {
	if value == "" {
		return false, nil
	}

	count, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias."+column+" = ?", value).
		Count(ctx)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (a *users) Register(ctx context.Context, record *User, autoActivate bool) (*User, error) {
	prepareUserDefaults(record, a.deterministicIDs)

	if autoActivate {
		record.MarkActivated()
	}

	created, err := a.Repository.Create(ctx, record)
	if err != nil {
		return nil, conflictFromStoreError(err)
	}

	return created, nil
}

func (a *users) Save(ctx context.Context, record *User) (*User, error) {
	updated, err := a.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		return nil, conflictFromStoreError(err)
	}
	return updated, nil
}

func (a *users) IssueActivationCode(ctx context.Context, user *User) (string, error) {
	code := newSecret()

	record := &User{ID: user.ID, ActivationCode: code}
	if _, err := a.Repository.Update(ctx, record, repository.UpdateByID(user.ID.String())); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store activation code")
	}

	user.ActivationCode = code
	return code, nil
}

func (a *users) VerifyAndActivate(ctx context.Context, user *User, secret string) (bool, error) {
	if user == nil || secret == "" || user.ActivationCode == "" {
		return false, nil
	}

	if user.ActivationCode != secret {
		return false, nil
	}

	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("is_activated = ?", true).
		Set("activated_at = ?", now).
		Set("activation_code = NULL").
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", user.ID.String()).
		Where("?TableAlias.activation_code = ?", secret).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	user.MarkActivated()
	return true, nil
}

func (a *users) IssueResetCode(ctx context.Context, user *User) (string, error) {
	code := newSecret()

	record := &User{ID: user.ID, ResetCode: code}
	if _, err := a.Repository.Update(ctx, record, repository.UpdateByID(user.ID.String())); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset code")
	}

	user.ResetCode = code
	return code, nil
}

func (a *users) ApplyResetPassword(ctx context.Context, user *User, secret, passwordHash string) (bool, error) {
	if user == nil || secret == "" || user.ResetCode == "" {
		return false, nil
	}

	if user.ResetCode != secret {
		return false, nil
	}

	res, err := a.Repository.Raw(ctx, ApplyResetPasswordSQL, passwordHash, user.ID.String())
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply password reset")
	}

	if len(res) == 0 {
		return false, nil
	}

	user.PasswordHash = passwordHash
	user.ResetCode = ""
	return true, nil
}

func (a *users) TouchLastSeen(ctx context.Context, user *User) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_seen_at = ?", now).
		Where("?TableAlias.id = ?", user.ID.String()).
		Exec(ctx)
	if err == nil {
		user.LastSeenAt = &now
	}
	return err
}

func (a *users) TouchIPAddress(ctx context.Context, user *User, ip string) error {
	if ip == "" {
		return nil
	}

	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_ip_address = ?", ip).
		Where("?TableAlias.id = ?", user.ID.String()).
		Exec(ctx)
	if err == nil {
		user.LastIPAddress = ip
	}
	return err
}

func prepareUserDefaults(record *User, deterministicIDs bool) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)
	record.Username = strings.TrimSpace(record.Username)

	if record.ID == uuid.Nil {
		if deterministicIDs && record.Email != "" {
			if id, err := hashid.NewUUID(record.Email); err == nil {
				record.ID = id
			}
		}
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
	}
}

func prepareRegisterAttemptDefaults(record *RegisterAttempt) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// conflictFromStoreError maps unique-constraint violations onto the taken
// errors; the pre-checks in the manager are advisory, this is the one that
// holds under concurrent registration.
func conflictFromStoreError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		if strings.Contains(msg, "username") {
			return ErrUsernameTaken
		}
		return ErrEmailTaken
	}

	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
