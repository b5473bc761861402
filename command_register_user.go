package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Client    ClientInfo `json:"client"`
	UseHashid bool
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User  *User
	Roles []string
}

// RegisterUserHandler creates an identity, assigns the default role, and
// records the registration in the audit trail.
type RegisterUserHandler struct {
	repo     RepositoryManager
	config   Config
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, config Config) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		config:   config,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	var roles []string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		username := getUsername(event.Username, event.Email)

		for _, identifier := range []string{event.Email, username} {
			existing, err := h.repo.Users().GetByIdentifierTx(ctx, tx, identifier)
			if err != nil && !goerrors.IsNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing identity")
			}
			if existing != nil {
				return ErrDuplicateIdentity.Clone().WithMetadata(map[string]any{
					"identifier": identifier,
				})
			}
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.FirstName = event.FirstName
		user.LastName = event.LastName
		user.Username = username
		user.Status = UserStatusActive
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		// The default role is a provisioning precondition; its absence
		// is an infrastructure fault, never a user-facing error.
		role, err := h.repo.Roles().GetByNameTx(ctx, tx, h.config.GetDefaultRole())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrMissingDefaultRole.Clone().WithMetadata(map[string]any{
					"role": h.config.GetDefaultRole(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load default role")
		}

		if err := h.repo.Roles().AssignTx(ctx, tx, user.ID, role.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign default role")
		}

		roles = []string{role.Name}
		return nil
	})

	if err != nil {
		if IsConflict(err) {
			h.recordActivity(ctx, event, user, false, map[string]any{
				"reason": "duplicate identity",
			})
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	h.recordActivity(ctx, event, user, true, nil)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Roles: roles})
	}

	return nil
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, event RegisterUserMessage, user *User, success bool, metadata map[string]any) {
	record := ActivityEvent{
		EventType:  ActivityEventRegister,
		Actor:      ActorRef{Type: "unknown"},
		Email:      event.Email,
		Client:     event.Client,
		Success:    success,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if success && user != nil {
		record.Actor = actorFromUser(user)
		record.UserID = user.ID.String()
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, record); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
