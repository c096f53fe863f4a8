package upkeep

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeInvalidToken       = "INVALID_OR_EXPIRED_TOKEN"
)

// ErrDuplicateEmail is returned when registration targets an email that is
// already taken.
var ErrDuplicateEmail = goerrors.New("registration failed, please check your information", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned for unknown emails and for password
// mismatches alike, so callers cannot enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken covers refresh tokens that are missing, expired, or already
// revoked. Presenting a revoked token is rejected identically whether it is a
// stale client or a replay.
var ErrInvalidToken = goerrors.New("invalid or expired refresh token", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation)

// ErrMismatchedHashAndPassword is the normalized bcrypt mismatch error
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth)

// ErrTokenExpired marks an access token past its expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED")

// ErrTokenMalformed marks an access token that failed signature, issuer, or
// audience checks.
var ErrTokenMalformed = goerrors.New("token is malformed or invalid", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED")
