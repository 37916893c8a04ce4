package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore defines persistence operations for refresh tokens.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error
	// GetByHash looks a record up by its stored secret hash. Returns
	// ErrNotFound when no record matches.
	GetByHash(ctx context.Context, hash []byte) (RefreshToken, error)
	// Rotate revokes the predecessor and inserts its successor as a single
	// transaction. The revocation is conditional on revoked_at IS NULL; when
	// the guard fails (a concurrent rotation of the same predecessor already
	// won) Rotate returns ErrRefreshTokenUsed and inserts nothing.
	Rotate(ctx context.Context, oldID uuid.UUID, successor RefreshToken) error
	// Revoke marks a record revoked. Revoking an already-revoked record is
	// a no-op.
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	// DeleteExpired removes records whose expiry is older than cutoff and
	// returns the number removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// RefreshToken represents a stored refresh token record. Only the SHA-256
// hash of the secret is persisted; a database read alone cannot be used to
// forge a token.
type RefreshToken struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TokenHash    []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	ReplacedByID *uuid.UUID
}
