package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID          uuid.UUID  `json:"user_id"`
	CurrentPassword string     `json:"current_password"`
	NewPassword     string     `json:"new_password"`
	Client          ClientInfo `json:"client"`
}

func (p ChangePasswordMessage) Type() string { return "user.password_change" }

// ChangePasswordHandler rotates a password for an authenticated user.
// The current password must verify; success revokes every session the
// user holds, so other devices must log in again.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *ChangePasswordHandler) WithClock(clock func() time.Time) *ChangePasswordHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidCredentials.Clone()
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
	}

	if err := ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		h.recordActivity(ctx, event, user, false, map[string]any{
			"reason": "current password mismatch",
		})
		return ErrInvalidCredentials.Clone()
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		passwordHash, err := HashPassword(event.NewPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
		}

		if _, err := h.repo.Sessions().RevokeAllForUserTx(ctx, tx, user.ID, h.now()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke sessions")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to change password")
	}

	h.recordActivity(ctx, event, user, true, nil)

	return nil
}

func (h *ChangePasswordHandler) recordActivity(ctx context.Context, event ChangePasswordMessage, user *User, success bool, metadata map[string]any) {
	record := ActivityEvent{
		EventType:  ActivityEventPasswordChange,
		Actor:      actorFromUser(user),
		UserID:     event.UserID.String(),
		Client:     event.Client,
		Success:    success,
		Metadata:   metadata,
		OccurredAt: h.now(),
	}

	if user != nil {
		record.Email = user.Email
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during password change: %v", err)
	}
}
