package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email  string     `json:"email" doc:"Account email."`
	Client ClientInfo `json:"client"`
	// OnResponse receives the reset record and the plaintext secret.
	// The secret must travel out-of-band (mail), never in an API body.
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Reset   *PasswordReset
	Secret  string
	Success bool
}

// InitializePasswordResetHandler opens a reset request. An unknown email
// reports success to the caller all the same; only the audit trail and
// the absence of a new request row tell the difference.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	config   Config
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, config Config) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		config:   config,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit reset-request events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock (useful for tests).
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		// No matching identity. The caller still sees success so the
		// endpoint cannot be used to probe for registered emails.
		h.recordActivity(ctx, event, nil, false, map[string]any{
			"reason": "identity not found",
		})

		resp.Success = true
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// A newer request invalidates every open one; at most a single
		// usable request exists per identity.
		if _, err := h.repo.PasswordResets().SupersedeForUserTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede prior reset requests")
		}

		pair, err := GenerateSecret()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset secret")
		}

		now := h.now()
		reset := &PasswordReset{
			ID:           uuid.New(),
			UserID:       user.ID,
			Email:        event.Email,
			SecretDigest: pair.Digest,
			Status:       ResetRequestedStatus,
			ExpiresAt:    now.Add(h.config.GetResetTokenTTL()),
		}

		if reset, err = h.repo.PasswordResets().CreateTx(ctx, tx, reset); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}

		resp.Reset = reset
		resp.Secret = pair.Plaintext
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	h.recordActivity(ctx, event, user, true, map[string]any{
		"password_reset_id": resp.Reset.ID.String(),
	})

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, event InitializePasswordResetMessage, user *User, success bool, metadata map[string]any) {
	record := ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		Actor:      ActorRef{Type: "unknown"},
		Email:      event.Email,
		Client:     event.Client,
		Success:    success,
		Metadata:   metadata,
		OccurredAt: h.now(),
	}

	if user != nil {
		record.Actor = actorFromUser(user)
		record.UserID = user.ID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
