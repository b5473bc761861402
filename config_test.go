package auth_test

import (
	"testing"
	"time"

	auth "github.com/docuarc/go-auth"
	"github.com/stretchr/testify/assert"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := auth.DefaultEngineConfig("signing-key")

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "signing-key", cfg.GetSigningKey())
	assert.Equal(t, 15*time.Minute, cfg.GetAccessTokenTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.GetRefreshTokenTTL())
	assert.Equal(t, 24*time.Hour, cfg.GetResetTokenTTL())
	assert.Equal(t, auth.RoleUser, cfg.GetDefaultRole())
}

func TestEngineConfigValidate(t *testing.T) {
	cfg := auth.DefaultEngineConfig("")
	assert.Error(t, cfg.Validate())

	cfg = auth.DefaultEngineConfig("key")
	cfg.AccessTokenTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = auth.DefaultEngineConfig("key")
	cfg.RefreshTokenTTL = -time.Hour
	assert.Error(t, cfg.Validate())

	cfg = auth.DefaultEngineConfig("key")
	cfg.ResetTokenTTL = 0
	assert.Error(t, cfg.Validate())

	cfg = auth.DefaultEngineConfig("key")
	cfg.DefaultRole = ""
	assert.Error(t, cfg.Validate())
}
