package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle status of a user account
type UserStatus = string

const (
	// UserStatusPending is a created but not yet activated account
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is a normal, loginable account
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is temporarily blocked by an administrator
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled is blocked until explicitly reinstated
	UserStatusDisabled UserStatus = "disabled"
)

// RoleUser is the default role assigned at registration. It must exist
// in the store before the first registration; its absence is a
// configuration fault, not a user-facing error.
const RoleUser = "User"

// User is the identity model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults the status for records created without one
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// Loginable reports whether the account may authenticate at all
func (u *User) Loginable() bool {
	return u != nil && u.Status == UserStatusActive && u.DeletedAt == nil
}

// Identity adapts the record to the Identity interface
func (u *User) Identity() Identity {
	return userIdentity{user: u}
}

type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string       { return i.user.ID.String() }
func (i userIdentity) Username() string { return i.user.Username }
func (i userIdentity) Email() string    { return i.user.Email }

// Role is a named bundle of permissions assignable to users
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string        `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string        `bun:"description" json:"description,omitempty"`
	Permissions   []*Permission `bun:"m2m:role_permissions,join:Role=Permission" json:"permissions,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Permission is a named capability
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:prm"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRoleAssignment links users to roles
type UserRoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"-"`
}

// RolePermission links roles to permissions
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`
	RoleID        uuid.UUID   `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role       `bun:"rel:belongs-to,join:role_id=id" json:"-"`
	PermissionID  uuid.UUID   `bun:"permission_id,pk,type:uuid" json:"permission_id,omitempty"`
	Permission    *Permission `bun:"rel:belongs-to,join:permission_id=id" json:"-"`
}

// RefreshSession is a long-lived refresh-token record. Only the digest
// of the secret is persisted; the plaintext exists exactly once, in the
// response that issued it.
type RefreshSession struct {
	bun.BaseModel `bun:"table:refresh_sessions,alias:rs"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	SecretDigest  string     `bun:"secret_digest,notnull" json:"-"`
	Device        string     `bun:"device" json:"device,omitempty"`
	Address       string     `bun:"address" json:"address,omitempty"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
	ReplacedBy    *uuid.UUID `bun:"replaced_by,nullzero,type:uuid" json:"replaced_by,omitempty"`
}

// Revoked reports whether the session was explicitly invalidated
func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session aged out at the given instant.
// Expiry is logical, never a stored state.
func (s *RefreshSession) Expired(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

// Usable reports whether the session may still rotate
func (s *RefreshSession) Usable(at time.Time) bool {
	return s != nil && !s.Revoked() && !s.Expired(at)
}

// PasswordResetStatus values for PasswordReset.Status
const (
	// ResetRequestedStatus is an open, usable reset request
	ResetRequestedStatus = "requested"
	// ResetChangedStatus marks a consumed request
	ResetChangedStatus = "changed"
	// ResetSupersededStatus marks a request invalidated by a newer one
	ResetSupersededStatus = "superseded"
)

// PasswordReset is a single-use, time-bounded reset request
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	SecretDigest  string     `bun:"secret_digest,notnull" json:"-"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Usable reports whether the request can still redeem a new password
func (r *PasswordReset) Usable(at time.Time) bool {
	return r != nil && r.Status == ResetRequestedStatus && at.Before(r.ExpiresAt)
}

// SecurityEvent is an immutable audit record. Rows are append-only;
// nothing in this package updates or deletes them.
type SecurityEvent struct {
	bun.BaseModel `bun:"table:security_events,alias:sev"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Kind          string         `bun:"kind,notnull" json:"kind,omitempty"`
	UserID        *uuid.UUID     `bun:"user_id,nullzero,type:uuid" json:"user_id,omitempty"`
	Email         string         `bun:"email" json:"email,omitempty"`
	Device        string         `bun:"device" json:"device,omitempty"`
	Address       string         `bun:"address" json:"address,omitempty"`
	Success       bool           `bun:"success,notnull" json:"success"`
	Detail        map[string]any `bun:"detail" json:"detail,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at,omitempty"`
}
