package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// ClientInfo describes the device and network origin of a request.
// It is carried on every orchestrator operation for the audit trail.
type ClientInfo struct {
	Device  string `json:"device,omitempty"`
	Address string `json:"address,omitempty"`
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResult is the success payload for Login and Refresh.
type LoginResult struct {
	TokenPair
	Identity    Identity `json:"identity"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// TokenService issues and validates signed access tokens
type TokenService interface {
	Generate(identity Identity, roles, permissions []string) (string, time.Time, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	SubjectFromExpired(tokenString string) (string, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Users is the identity slice of the credential store
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// Sessions is the refresh-session slice of the credential store.
// Rows are only ever inserted or flagged revoked, never deleted; expiry
// is computed against the timestamps at read time.
type Sessions interface {
	Create(ctx context.Context, record *RefreshSession) (*RefreshSession, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RefreshSession) (*RefreshSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*RefreshSession, error)
	ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*RefreshSession, error)
	ActiveByDigest(ctx context.Context, digest string, at time.Time) (*RefreshSession, error)
	// MarkRotatedTx revokes the session and records its replacement in a
	// single guarded update. It reports false when the session was
	// already revoked, which is how concurrent rotations lose the race.
	MarkRotatedTx(ctx context.Context, tx bun.IDB, id, replacedBy uuid.UUID, at time.Time) (bool, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error)
}

// PasswordResets is the reset-request slice of the credential store
type PasswordResets interface {
	Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PasswordReset) (*PasswordReset, error)
	Active(ctx context.Context, at time.Time) ([]*PasswordReset, error)
	ActiveTx(ctx context.Context, tx bun.IDB, at time.Time) ([]*PasswordReset, error)
	ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*PasswordReset, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
	SupersedeForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)
}

// Roles resolves role membership and the flattened permission set
type Roles interface {
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error
	RolesByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	// PermissionsByUser returns the deduplicated union of permissions
	// granted through every role the user holds.
	PermissionsByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// SecurityEvents is the append-only audit slice of the credential store
type SecurityEvents interface {
	Append(ctx context.Context, record *SecurityEvent) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
