package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type sessions struct {
	repository.Repository[*RefreshSession]
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

// NewSessionsRepository returns the bun-backed Sessions store
func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*RefreshSession](db, repository.ModelHandlers[*RefreshSession]{
		NewRecord: func() *RefreshSession { return &RefreshSession{} },
		GetID: func(s *RefreshSession) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *RefreshSession, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "secret_digest"
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (a *sessions) Create(ctx context.Context, record *RefreshSession) (*RefreshSession, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *sessions) CreateTx(ctx context.Context, tx bun.IDB, record *RefreshSession) (*RefreshSession, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *sessions) GetByID(ctx context.Context, id uuid.UUID) (*RefreshSession, error) {
	record := &RefreshSession{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*RefreshSession, error) {
	var records []*RefreshSession
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", at).
		Order("issued_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *sessions) ActiveByDigest(ctx context.Context, digest string, at time.Time) (*RefreshSession, error) {
	record := &RefreshSession{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.secret_digest = ?", digest).
		Where("?TableAlias.revoked_at IS NULL").
		Where("?TableAlias.expires_at > ?", at).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"lookup": "secret_digest"})
		}
		return nil, err
	}

	return record, nil
}

// MarkRotatedTx performs the single guarded update that decides replay
// races: the WHERE clause only matches a live row, so exactly one
// concurrent rotation observes rows == 1.
func (a *sessions) MarkRotatedTx(ctx context.Context, tx bun.IDB, id, replacedBy uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked_at = ?", at).
		Set("replaced_by = ?", replacedBy).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
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

func (a *sessions) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res, err := a.db.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked_at = ?", at).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
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

func (a *sessions) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	return a.RevokeAllForUserTx(ctx, a.db, userID, at)
}

func (a *sessions) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked_at = ?", at).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
