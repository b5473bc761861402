package auth

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RepositoryManager aggregates the persistence stores and owns the
// transaction boundary for multi-store operations.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Sessions() Sessions
	PasswordResets() PasswordResets
	Roles() Roles
	SecurityEvents() SecurityEvents
}

type mngr struct {
	db       *bun.DB
	users    Users
	sessions Sessions
	resets   PasswordResets
	roles    Roles
	events   SecurityEvents
}

// NewRepositoryManager creates a RepositoryManager backed by the
// given bun database handle.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		sessions: NewSessionsRepository(db),
		resets:   NewPasswordResetsRepository(db),
		roles:    NewRolesRepository(db),
		events:   NewSecurityEventsRepository(db),
	}
}

func (m *mngr) Validate() error {
	if m.db == nil {
		return goerrors.New(
			"repository manager requires a database connection",
			goerrors.CategoryInternal,
		).WithTextCode("INVALID_CONFIG")
	}
	return nil
}

func (m *mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}

func (m *mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled before transaction start",
		)
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *mngr) Users() Users { return m.users }

func (m *mngr) Sessions() Sessions { return m.sessions }

func (m *mngr) PasswordResets() PasswordResets { return m.resets }

func (m *mngr) Roles() Roles { return m.roles }

func (m *mngr) SecurityEvents() SecurityEvents { return m.events }
