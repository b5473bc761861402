package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// secretLength is the byte length of generated refresh/reset secrets.
const secretLength = 32 // 256 bits

// SecretPair carries a freshly generated opaque secret. The plaintext
// goes to the holder exactly once; only the digest is ever persisted.
type SecretPair struct {
	Plaintext string
	Digest    string
}

// GenerateSecret produces a high-entropy opaque secret and its storage
// digest. Random secrets carry their own entropy, so a fast keyed digest
// is enough here; the slow salted hash stays reserved for passwords.
func GenerateSecret() (*SecretPair, error) {
	raw := make([]byte, secretLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}

	plaintext := base64.RawURLEncoding.EncodeToString(raw)

	return &SecretPair{
		Plaintext: plaintext,
		Digest:    DigestSecret(plaintext),
	}, nil
}

// DigestSecret computes the storage digest of an opaque secret.
func DigestSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifySecret reports whether plaintext matches the stored digest.
// Comparison is constant time; a malformed digest simply fails to match.
func VerifySecret(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	computed := DigestSecret(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
