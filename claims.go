package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents structured access-token claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Roles() []string
	Permissions() []string
	HasRole(role string) bool
	HasPermission(permission string) bool
	TokenID() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. Roles and
// permissions are a point-in-time snapshot taken at issuance; they only
// catch up with store changes on the next refresh or login.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID            string         `json:"uid,omitempty"`
	Name           string         `json:"name,omitempty"`
	RoleList       []string       `json:"roles,omitempty"`
	PermissionList []string       `json:"perms,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Username returns the display identifier
func (c *JWTClaims) Username() string {
	return c.Name
}

// Roles returns the role snapshot
func (c *JWTClaims) Roles() []string {
	return c.RoleList
}

// Permissions returns the flattened permission snapshot
func (c *JWTClaims) Permissions() []string {
	return c.PermissionList
}

// HasRole checks if the token carries a specific role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.RoleList {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the token carries a specific permission
func (c *JWTClaims) HasPermission(permission string) bool {
	for _, p := range c.PermissionList {
		if p == permission {
			return true
		}
	}
	return false
}

// TokenID returns the per-issuance random identifier
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID fills the jti claim so two tokens minted for the same
// login are always distinguishable.
func ensureTokenID(rc *jwt.RegisteredClaims) {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
}
