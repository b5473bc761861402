package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionManager owns the refresh-session state machine:
//
//	Active --(rotate or revoke)--> Revoked
//	Active --(time passes expiry)--> Expired
//
// Revoked and Expired are both terminal and equally invalid; nothing
// resurrects either. Expired is computed at validation time, never stored.
type SessionManager struct {
	repo       RepositoryManager
	refreshTTL time.Duration
	logger     Logger
	now        func() time.Time
}

// NewSessionManager returns a manager bound to the given store.
func NewSessionManager(repo RepositoryManager, config Config) *SessionManager {
	return &SessionManager{
		repo:       repo,
		refreshTTL: config.GetRefreshTokenTTL(),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (sm *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		sm.logger = logger
	}
	return sm
}

// WithClock injects a custom clock (useful for tests).
func (sm *SessionManager) WithClock(clock func() time.Time) *SessionManager {
	if clock != nil {
		sm.now = clock
	}
	return sm
}

// Issue creates a refresh session for the user and returns the record
// plus the plaintext secret. The plaintext is never stored and never
// surfaces again.
func (sm *SessionManager) Issue(ctx context.Context, userID uuid.UUID, client ClientInfo) (*RefreshSession, string, error) {
	return sm.issue(ctx, nil, userID, client)
}

func (sm *SessionManager) issue(ctx context.Context, tx bun.IDB, userID uuid.UUID, client ClientInfo) (*RefreshSession, string, error) {
	pair, err := GenerateSecret()
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh secret")
	}

	now := sm.now()
	session := &RefreshSession{
		ID:           uuid.New(),
		UserID:       userID,
		SecretDigest: pair.Digest,
		Device:       client.Device,
		Address:      client.Address,
		IssuedAt:     now,
		ExpiresAt:    now.Add(sm.refreshTTL),
	}

	if tx != nil {
		session, err = sm.repo.Sessions().CreateTx(ctx, tx, session)
	} else {
		session, err = sm.repo.Sessions().Create(ctx, session)
	}
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh session")
	}

	return session, pair.Plaintext, nil
}

// Validate finds the session the presented secret belongs to. It scans
// the user's active sessions and verifies the digest of each; linear in
// the concurrent session count, which stays small in practice. Why the
// scan: only digests are stored, so there is nothing searchable to
// index beyond the owning user. Every failure collapses into the same
// error so callers cannot distinguish wrong secret, no sessions, or
// all expired.
func (sm *SessionManager) Validate(ctx context.Context, userID uuid.UUID, secret string) (*RefreshSession, error) {
	if secret == "" {
		return nil, ErrInvalidRefreshToken
	}

	now := sm.now()
	sessions, err := sm.repo.Sessions().ActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load refresh sessions")
	}

	for _, session := range sessions {
		if VerifySecret(secret, session.SecretDigest) && session.Usable(now) {
			return session, nil
		}
	}

	return nil, ErrInvalidRefreshToken
}

// Rotate revokes the presented session and issues its replacement in a
// single transaction. The revocation is a guarded update on the revoked
// flag: of any number of concurrent rotations of the same session,
// exactly one wins and the rest observe it as already revoked. The old
// session is durably dead before the new secret exists, so no window
// ever has both valid.
func (sm *SessionManager) Rotate(ctx context.Context, session *RefreshSession, client ClientInfo) (*RefreshSession, string, error) {
	if session == nil {
		return nil, "", ErrInvalidRefreshToken
	}

	var next *RefreshSession
	var plaintext string

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		nextID := uuid.New()

		won, err := sm.repo.Sessions().MarkRotatedTx(ctx, tx, session.ID, nextID, sm.now())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke rotated session")
		}
		if !won {
			return ErrInvalidRefreshToken
		}

		pair, err := GenerateSecret()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh secret")
		}

		now := sm.now()
		next = &RefreshSession{
			ID:           nextID,
			UserID:       session.UserID,
			SecretDigest: pair.Digest,
			Device:       client.Device,
			Address:      client.Address,
			IssuedAt:     now,
			ExpiresAt:    now.Add(sm.refreshTTL),
		}

		if next, err = sm.repo.Sessions().CreateTx(ctx, tx, next); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist rotated session")
		}

		plaintext = pair.Plaintext
		return nil
	})

	if err != nil {
		return nil, "", err
	}

	return next, plaintext, nil
}

// Revoke invalidates a session by id. Revoking an already revoked
// session is not an error.
func (sm *SessionManager) Revoke(ctx context.Context, id uuid.UUID) error {
	if _, err := sm.repo.Sessions().Revoke(ctx, id, sm.now()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session")
	}
	return nil
}

// RevokeBySecret locates the active session matching the presented
// secret across all users and revokes it. A 256-bit random secret makes
// its digest a unique lookup key.
func (sm *SessionManager) RevokeBySecret(ctx context.Context, secret string) (*RefreshSession, error) {
	if secret == "" {
		return nil, ErrSessionNotFound
	}

	session, err := sm.repo.Sessions().ActiveByDigest(ctx, DigestSecret(secret), sm.now())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up session")
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if err := sm.Revoke(ctx, session.ID); err != nil {
		return nil, err
	}

	return session, nil
}

// RevokeAll revokes every active session the user holds. Used on
// logout-everywhere, password change, and password reset.
func (sm *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := sm.repo.Sessions().RevokeAllForUser(ctx, userID, sm.now())
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke sessions")
	}
	return count, nil
}

// RevokeAllTx is RevokeAll inside an existing transaction.
func (sm *SessionManager) RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	count, err := sm.repo.Sessions().RevokeAllForUserTx(ctx, tx, userID, sm.now())
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke sessions")
	}
	return count, nil
}
