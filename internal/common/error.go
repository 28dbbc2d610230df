// Package common defines shared constants and sentinel errors used across
// client and server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrUnavailable    = errors.New("server unavailable")

	// Account errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account is locked")
	ErrAlreadyExists      = errors.New("already exists")

	// Invite errors.
	ErrInvalidInvite = errors.New("invalid invite")
	ErrExpiredInvite = errors.New("invite expired")

	// Crypto errors. Decryption and verification failures are reported
	// through this value only.
	ErrCryptoFailure = errors.New("crypto failure")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Codes maps every sentinel to the stable reason string carried on the
// wire. The order matters for Code: more specific errors come first.
var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidCredentials, "INVALID_CREDENTIALS"},
	{ErrInvalidInvite, "INVALID_INVITE"},
	{ErrExpiredInvite, "EXPIRED_INVITE"},
	{ErrCryptoFailure, "CRYPTO_FAILURE"},
	{ErrLocked, "LOCKED"},
	{ErrAlreadyExists, "ALREADY_EXISTS"},
	{ErrTokenExpired, "TOKEN_EXPIRED"},
	{ErrInvalidToken, "INVALID_TOKEN"},
	{ErrorUnauthorized, "UNAUTHORIZED"},
	{ErrorNotFound, "NOT_FOUND"},
	{ErrUnavailable, "UNAVAILABLE"},
	{ErrorInternal, "INTERNAL"},
}

// Code returns the wire reason for err, or "INTERNAL" if err does not wrap
// a known sentinel.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}

// FromCode is the inverse of Code. Unknown codes map to ErrorInternal.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return ErrorInternal
}
