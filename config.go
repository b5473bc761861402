package auth

import (
	"log"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetDefaultRole() string
}

// EngineConfig is an explicit configuration value object. It is injected
// at construction time; nothing in the package reads ambient globals.
type EngineConfig struct {
	SigningKey      string
	Issuer          string
	Audience        []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	DefaultRole     string
}

// DefaultEngineConfig returns a config with short-lived access tokens,
// long-lived refresh sessions, and 24h reset tokens.
func DefaultEngineConfig(signingKey string) EngineConfig {
	return EngineConfig{
		SigningKey:      signingKey,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		ResetTokenTTL:   24 * time.Hour,
		DefaultRole:     RoleUser,
	}
}

func (c EngineConfig) GetSigningKey() string { return c.SigningKey }

func (c EngineConfig) GetIssuer() string { return c.Issuer }

func (c EngineConfig) GetAudience() []string { return c.Audience }

func (c EngineConfig) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

func (c EngineConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c EngineConfig) GetResetTokenTTL() time.Duration { return c.ResetTokenTTL }

func (c EngineConfig) GetDefaultRole() string { return c.DefaultRole }

// Validate checks the options a running engine cannot work without.
func (c EngineConfig) Validate() error {
	if c.SigningKey == "" {
		return goerrors.New("signing key is required", goerrors.CategoryInternal).
			WithTextCode("MISSING_SIGNING_KEY")
	}

	if c.AccessTokenTTL <= 0 {
		return goerrors.New("access token TTL must be positive", goerrors.CategoryInternal)
	}

	if c.RefreshTokenTTL <= 0 {
		return goerrors.New("refresh token TTL must be positive", goerrors.CategoryInternal)
	}

	if c.ResetTokenTTL <= 0 {
		return goerrors.New("reset token TTL must be positive", goerrors.CategoryInternal)
	}

	if c.DefaultRole == "" {
		return goerrors.New("default role is required", goerrors.CategoryInternal)
	}

	return nil
}

func (c EngineConfig) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Panic(err)
	}
}
