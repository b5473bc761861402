package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Secret   string     `json:"secret" doc:"Reset secret from the out-of-band channel"`
	Password string     `json:"password" doc:"New password"`
	Client   ClientInfo `json:"client"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

// FinalizePasswordResetHandler redeems a reset secret exactly once: it
// sets the new password hash, consumes the request, and revokes every
// session the identity holds.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *FinalizePasswordResetHandler) WithClock(clock func() time.Time) *FinalizePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	var reset *PasswordReset

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := h.now()

		// Only digests are stored, so the request is found by scanning
		// the open ones and verifying each. The open set is bounded by
		// supersession: at most one usable request per identity.
		open, err := h.repo.PasswordResets().ActiveTx(ctx, tx, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset requests")
		}

		for _, candidate := range open {
			if VerifySecret(event.Secret, candidate.SecretDigest) && candidate.Usable(now) {
				reset = candidate
				break
			}
		}

		if reset == nil {
			return ErrInvalidOrExpiredToken.Clone()
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, reset.UserID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
		}

		// The guarded update makes redemption single-use: a concurrent
		// finalize with the same secret loses here.
		consumed, err := h.repo.PasswordResets().MarkUsedTx(ctx, tx, reset.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset request")
		}
		if !consumed {
			return ErrInvalidOrExpiredToken.Clone()
		}

		// A reset invalidates every existing login.
		if _, err := h.repo.Sessions().RevokeAllForUserTx(ctx, tx, reset.UserID, now); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke sessions")
		}

		return nil
	})

	if err != nil {
		if IsInvalidOrExpired(err) {
			h.recordActivity(ctx, event, nil, false, map[string]any{
				"reason": "invalid or expired reset token",
			})
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, event, reset, true, map[string]any{
		"password_reset_id": reset.ID.String(),
	})

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, event FinalizePasswordResetMessage, reset *PasswordReset, success bool, metadata map[string]any) {
	record := ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorRef{Type: "unknown"},
		Client:     event.Client,
		Success:    success,
		Metadata:   metadata,
		OccurredAt: h.now(),
	}

	if reset != nil {
		record.Actor = ActorRef{ID: reset.UserID.String(), Type: "user"}
		record.UserID = reset.UserID.String()
		record.Email = reset.Email
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
