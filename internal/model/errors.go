package model

import "errors"

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Key management errors.
var (
	ErrKeyExists         = errors.New("signing key already exists")
	ErrKeyNotFound       = errors.New("signing key not found")
	ErrNoActiveKey       = errors.New("no active signing key")
	ErrLastActiveKey     = errors.New("cannot retire last active signing key")
	ErrKeyGeneration     = errors.New("signing key generation failed")
	ErrUnsupportedKeyAlg = errors.New("unsupported signing algorithm")
)

// Access token verification errors. Each failure mode is distinct so callers
// can react differently: an expired token is routine, a revoked one may
// warrant alerting.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
	ErrSignatureInvalid  = errors.New("token signature invalid")
	ErrAudienceMismatch  = errors.New("token audience mismatch")
	ErrIssuerMismatch    = errors.New("token issuer mismatch")
	ErrTokenVersionStale = errors.New("token version stale")
	ErrTokenRevoked      = errors.New("token revoked")
)

// ErrRefreshTokenInvalid deliberately collapses every refresh validation
// failure (unknown, expired, already used, revoked) into one opaque result so
// a caller cannot distinguish a replayed token from a wrong one.
var ErrRefreshTokenInvalid = errors.New("refresh token invalid")

// ErrRefreshTokenUsed is reported by the store when a rotation loses the
// race against a concurrent rotation of the same predecessor. The service
// layer maps it onto ErrRefreshTokenInvalid before it leaves the core.
var ErrRefreshTokenUsed = errors.New("refresh token already used")

// Authentication flow errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLockedOut   = errors.New("account temporarily locked out")
	ErrRateLimited        = errors.New("rate limited")
)
