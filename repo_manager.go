package account

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	RegisterAttempts() repository.Repository[*RegisterAttempt]
}

func NewRegisterAttemptsRepository(db *bun.DB) repository.Repository[*RegisterAttempt] {
	handlers := repository.ModelHandlers[*RegisterAttempt]{
		NewRecord: func() *RegisterAttempt {
			return &RegisterAttempt{}
		},
		GetID: func(record *RegisterAttempt) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *RegisterAttempt, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "ip_address"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db               *bun.DB
	users            Users
	registerAttempts repository.Repository[*RegisterAttempt]
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:               db,
		users:            NewUsersRepository(db, opts...),
		registerAttempts: NewRegisterAttemptsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.registerAttempts == nil {
		return errors.New("repository registerAttempts should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) RegisterAttempts() repository.Repository[*RegisterAttempt] {
	return m.registerAttempts
}
