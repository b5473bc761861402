package auth_test

import (
	"testing"

	auth "github.com/docuarc/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("secret password")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "secret password", hash)

	// bcrypt salts per call
	again, err := auth.HashPassword("secret password")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("secret password")
	require.NoError(t, err)

	assert.NoError(t, auth.ComparePasswordAndHash("secret password", hash))
	assert.ErrorIs(t,
		auth.ComparePasswordAndHash("wrong password", hash),
		auth.ErrMismatchedHashAndPassword,
	)
}

func TestRandomPasswordHash(t *testing.T) {
	hash := auth.RandomPasswordHash()
	assert.NotEmpty(t, hash)

	// Verifies like any bcrypt hash, just never matches a real password.
	assert.Error(t, auth.ComparePasswordAndHash("anything", hash))
}
