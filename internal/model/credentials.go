package model

import (
	"context"

	"github.com/google/uuid"
)

// PasswordVerifier checks a credential pair against the identity backend.
// Password storage and hashing policy live outside this service; the core
// only consumes the pass/fail outcome. Implementations return
// ErrInvalidCredentials on mismatch and the user's id on success.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, identity, password string) (uuid.UUID, error)
}
