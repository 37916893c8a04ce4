package model

import "strings"

// RefreshTokenPrefix distinguishes opaque refresh tokens from JWT access
// tokens on the wire.
const RefreshTokenPrefix = "kmr_"

// TokenKind tags the two token shapes this server issues.
type TokenKind int

const (
	TokenKindUnknown TokenKind = iota
	TokenKindAccess
	TokenKindRefresh
)

// DetectTokenKind classifies a presented token by structure rather than by
// trying validators in sequence: refresh tokens carry a fixed prefix, access
// tokens are compact three-part JWTs.
func DetectTokenKind(token string) TokenKind {
	if strings.HasPrefix(token, RefreshTokenPrefix) {
		return TokenKindRefresh
	}
	if strings.Count(token, ".") == 2 {
		return TokenKindAccess
	}
	return TokenKindUnknown
}
