package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type resets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var _ PasswordResets = (*resets)(nil)

// NewPasswordResetsRepository returns the bun-backed PasswordResets store
func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(r *PasswordReset) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *PasswordReset, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "secret_digest"
		},
	})

	return &resets{
		Repository: repo,
		db:         db,
	}
}

func (a *resets) Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *resets) CreateTx(ctx context.Context, tx bun.IDB, record *PasswordReset) (*PasswordReset, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record != nil && record.Status == "" {
		record.Status = ResetRequestedStatus
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *resets) Active(ctx context.Context, at time.Time) ([]*PasswordReset, error) {
	return a.ActiveTx(ctx, a.db, at)
}

func (a *resets) ActiveTx(ctx context.Context, tx bun.IDB, at time.Time) ([]*PasswordReset, error) {
	var records []*PasswordReset
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", ResetRequestedStatus).
		Where("?TableAlias.expires_at > ?", at).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *resets) ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*PasswordReset, error) {
	var records []*PasswordReset
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.status = ?", ResetRequestedStatus).
		Where("?TableAlias.expires_at > ?", at).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

// MarkUsedTx consumes a reset request. The guarded WHERE makes the
// request single-use: only the transaction that flips the status sees
// rows == 1.
func (a *resets) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetChangedStatus).
		Set("reseted_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

func (a *resets) SupersedeForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetSupersededStatus).
		Where("user_id = ?", userID).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
