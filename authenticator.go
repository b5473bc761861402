package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxLoginAttempts is the maximum number of failed attempts a user gets
// before the cool down period applies
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// Auther orchestrates the credential lifecycle: login, refresh, logout,
// and token revocation. It is the only component that decides the
// success/failure semantics exposed to callers, and every operation
// emits exactly one activity event regardless of outcome.
type Auther struct {
	repo         RepositoryManager
	config       Config
	tokenService TokenService
	sessions     *SessionManager
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, config Config) *Auther {
	tokenService := NewTokenService(
		[]byte(config.GetSigningKey()),
		config.GetAccessTokenTTL(),
		config.GetIssuer(),
		config.GetAudience(),
		defLogger{},
	)

	return &Auther{
		repo:         repo,
		config:       config,
		tokenService: tokenService,
		sessions:     NewSessionManager(repo, config),
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.sessions = s.sessions.WithLogger(logger)
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service used for issuance.
func (s *Auther) WithTokenService(service TokenService) *Auther {
	if service != nil {
		s.tokenService = service
	}
	return s
}

// WithSessionManager overrides the refresh-session manager.
func (s *Auther) WithSessionManager(sessions *SessionManager) *Auther {
	if sessions != nil {
		s.sessions = sessions
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock != nil {
		s.now = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// SessionManager returns the refresh-session manager
func (s *Auther) SessionManager() *SessionManager {
	return s.sessions
}

// Login verifies credentials and issues an access token plus a refresh
// session. Unknown identifiers, wrong passwords, and blocked accounts
// all fail with the same error and comparable timing; the audit event
// carries the difference.
func (s *Auther) Login(ctx context.Context, identifier, password string, client ClientInfo) (*LoginResult, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
		}

		// Burn a comparison so unknown identifiers cost the same as
		// wrong passwords.
		_ = ComparePasswordAndHash(password, s.decoy())

		s.emitAuthEvent(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{Type: "unknown"},
			Email:     identifier,
			Client:    client,
			Metadata:  map[string]any{"reason": "identity not found"},
		})
		return nil, ErrInvalidCredentials
	}

	if reason := s.loginBlockReason(user); reason != "" {
		_ = ComparePasswordAndHash(password, s.decoy())

		s.emitAuthEvent(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     actorFromUser(user),
			UserID:    user.ID.String(),
			Email:     identifier,
			Client:    client,
			Metadata:  map[string]any{"reason": reason},
		})
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if trackErr := s.repo.Users().TrackAttemptedLogin(ctx, user); trackErr != nil {
			s.logger.Warn("failed to track attempted login: %v", trackErr)
		}

		s.emitAuthEvent(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     actorFromUser(user),
			UserID:    user.ID.String(),
			Email:     identifier,
			Client:    client,
			Metadata:  map[string]any{"reason": "password mismatch"},
		})
		return nil, ErrInvalidCredentials
	}

	result, err := s.issuePair(ctx, user, client)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Users().TrackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Warn("failed to track successful login: %v", err)
	}

	s.emitAuthEvent(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Email:     identifier,
		Client:    client,
		Success:   true,
	})

	return result, nil
}

// Refresh rotates a refresh session and issues a fresh token pair. The
// presented access token may be expired; only its signature must hold.
// Roles and permissions are re-resolved here, so grants changed since
// login take effect. Any failure collapses into ErrInvalidRefreshToken
// with no partial rotation.
func (s *Auther) Refresh(ctx context.Context, accessToken, refreshSecret string, client ClientInfo) (*LoginResult, error) {
	fail := func(reason string, userID string) (*LoginResult, error) {
		s.emitAuthEvent(ctx, ActivityEvent{
			EventType: ActivityEventTokenRefresh,
			Actor:     ActorRef{Type: "unknown"},
			UserID:    userID,
			Client:    client,
			Metadata:  map[string]any{"reason": reason},
		})
		return nil, ErrInvalidRefreshToken
	}

	subject, err := s.tokenService.SubjectFromExpired(accessToken)
	if err != nil {
		return fail("access token signature invalid", "")
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return fail("access token subject malformed", "")
	}

	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return fail("identity not found", subject)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}

	if !user.Loginable() {
		return fail("identity not loginable", user.ID.String())
	}

	session, err := s.sessions.Validate(ctx, user.ID, refreshSecret)
	if err != nil {
		if IsUnauthenticated(err) {
			return fail("refresh secret invalid", user.ID.String())
		}
		return nil, err
	}

	next, nextSecret, err := s.sessions.Rotate(ctx, session, client)
	if err != nil {
		if IsUnauthenticated(err) {
			// Lost the rotation race: someone already consumed this secret.
			return fail("refresh secret already rotated", user.ID.String())
		}
		return nil, err
	}

	result, err := s.issueAccess(ctx, user, next, nextSecret)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEvent{
		EventType: ActivityEventTokenRefresh,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Client:    client,
		Success:   true,
		Metadata:  map[string]any{"session_id": next.ID.String()},
	})

	return result, nil
}

// Logout revokes every active session the user holds. No active
// sessions is a no-op that still emits the event.
func (s *Auther) Logout(ctx context.Context, userID uuid.UUID, client ClientInfo) error {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrSessionNotFound.Clone()
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
	}

	revoked, err := s.sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Client:    client,
		Success:   true,
		Metadata:  map[string]any{"sessions_revoked": revoked},
	})

	return nil
}

// RevokeToken invalidates the session matching the presented refresh
// secret, whoever it belongs to.
func (s *Auther) RevokeToken(ctx context.Context, refreshSecret string, client ClientInfo) error {
	session, err := s.sessions.RevokeBySecret(ctx, refreshSecret)
	if err != nil {
		if IsNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEvent{
				EventType: ActivityEventTokenRevoke,
				Actor:     ActorRef{Type: "unknown"},
				Client:    client,
				Metadata:  map[string]any{"reason": "session not found"},
			})
		}
		return err
	}

	s.emitAuthEvent(ctx, ActivityEvent{
		EventType: ActivityEventTokenRevoke,
		Actor:     ActorRef{ID: session.UserID.String(), Type: "user"},
		UserID:    session.UserID.String(),
		Client:    client,
		Success:   true,
		Metadata:  map[string]any{"session_id": session.ID.String()},
	})

	return nil
}

// issuePair resolves grants and issues a fresh access token plus a new
// refresh session.
func (s *Auther) issuePair(ctx context.Context, user *User, client ClientInfo) (*LoginResult, error) {
	session, secret, err := s.sessions.Issue(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	return s.issueAccess(ctx, user, session, secret)
}

// issueAccess builds the result payload around an already issued
// refresh session.
func (s *Auther) issueAccess(ctx context.Context, user *User, session *RefreshSession, secret string) (*LoginResult, error) {
	roles, err := s.repo.Roles().RolesByUser(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve roles")
	}

	permissions, err := s.repo.Roles().PermissionsByUser(ctx, user.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve permissions")
	}

	access, accessExpiry, err := s.tokenService.Generate(user.Identity(), roles, permissions)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		TokenPair: TokenPair{
			AccessToken:      access,
			AccessExpiresAt:  accessExpiry,
			RefreshToken:     secret,
			RefreshExpiresAt: session.ExpiresAt,
		},
		Identity:    user.Identity(),
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// loginBlockReason reports why the account cannot authenticate, or ""
// when it can. The reason goes to the audit trail only.
func (s *Auther) loginBlockReason(user *User) string {
	if user.DeletedAt != nil {
		return "identity deleted"
	}

	if user.Status != UserStatusActive {
		return "identity status " + user.Status
	}

	if user.LoginAttempts >= MaxLoginAttempts && user.LoginAttemptAt != nil {
		coolingDown, err := IsWithinThresholdPeriod(*user.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			s.logger.Error("invalid cool down period: %v", err)
			return ""
		}
		if coolingDown {
			return "too many attempts"
		}
	}

	return ""
}

func (s *Auther) decoy() string {
	s.decoyOnce.Do(func() {
		s.decoyHash = RandomPasswordHash()
	})
	return s.decoyHash
}

func (s *Auther) emitAuthEvent(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(s.activitySink)

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
