package auth_test

import (
	"testing"

	auth "github.com/docuarc/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	pair, err := auth.GenerateSecret()
	require.NoError(t, err)

	assert.NotEmpty(t, pair.Plaintext)
	assert.NotEmpty(t, pair.Digest)
	assert.NotEqual(t, pair.Plaintext, pair.Digest)
	assert.Equal(t, auth.DigestSecret(pair.Plaintext), pair.Digest)

	other, err := auth.GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, pair.Plaintext, other.Plaintext)
}

func TestVerifySecret(t *testing.T) {
	pair, err := auth.GenerateSecret()
	require.NoError(t, err)

	assert.True(t, auth.VerifySecret(pair.Plaintext, pair.Digest))
	assert.False(t, auth.VerifySecret("not the secret", pair.Digest))
	assert.False(t, auth.VerifySecret("", pair.Digest))
	assert.False(t, auth.VerifySecret(pair.Plaintext, ""))
	assert.False(t, auth.VerifySecret(pair.Plaintext, "malformed-digest"))
}
