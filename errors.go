package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeDuplicateIdentity marks registration conflicts
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	// TextCodeInvalidCredentials marks failed authentication
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeInvalidRefreshToken marks unusable refresh secrets
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	// TextCodeSessionNotFound marks revocation of unknown sessions
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeResetTokenInvalid marks unusable reset secrets
	TextCodeResetTokenInvalid = "RESET_TOKEN_INVALID"
	// TextCodeTokenExpired marks expired access tokens
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed marks undecodable access tokens
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
)

// ErrDuplicateIdentity is returned when the email or username is taken.
var ErrDuplicateIdentity = goerrors.New("email or username already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers every login failure: unknown identifier,
// wrong password, or an account that cannot authenticate. Callers must
// not be able to tell these apart.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidRefreshToken covers every refresh failure: bad access-token
// signature, unknown identity, or a missing/expired/revoked session.
var ErrInvalidRefreshToken = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionNotFound is returned by RevokeToken when no active session
// matches the presented secret.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidOrExpiredToken is returned when a reset secret matches no
// open, unexpired request.
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned for access tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for undecodable or badly signed tokens.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingDefaultRole is a configuration fault: the default role must
// be provisioned before registration can run.
var ErrMissingDefaultRole = goerrors.New("default role is not provisioned", goerrors.CategoryInternal).
	WithTextCode("MISSING_DEFAULT_ROLE")

// ErrNoEmptyString rejects empty secrets at the hashing boundary.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput)

// ErrMismatchedHashAndPassword is the uniform password mismatch error.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials)

// IsConflict reports whether err belongs to the duplicate-identity family.
func IsConflict(err error) bool {
	return hasCategory(err, goerrors.CategoryConflict)
}

// IsUnauthenticated reports whether err belongs to the credential/refresh
// failure family.
func IsUnauthenticated(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	return hasCategory(err, goerrors.CategoryNotFound)
}

// IsInvalidOrExpired reports whether err belongs to the reset-token family.
func IsInvalidOrExpired(err error) bool {
	return hasCategory(err, goerrors.CategoryValidation)
}

func hasCategory(err error, category goerrors.Category) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == category
	}
	return false
}
