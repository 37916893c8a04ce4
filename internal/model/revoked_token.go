package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DenylistStore records explicitly revoked access tokens by jti. A signed
// token cannot be invalidated in place, so the denylist is the only way to
// force early rejection before its natural expiry. Entries are only
// meaningful until the underlying token's own expiry and must be purged
// after it.
type DenylistStore interface {
	// Revoke inserts an entry. Revoking an already-denylisted jti is treated
	// as already satisfied, not an error.
	Revoke(ctx context.Context, entry RevokedAccessToken) error
	// IsRevoked reports whether an unexpired entry exists for the jti.
	IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
	// DeleteExpired removes entries whose expiry has passed and returns the
	// number removed.
	DeleteExpired(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// RevokedAccessToken is a denylist entry. ExpiresAt is copied from the
// revoked token's own expiry claim, bounding how long the entry is retained.
type RevokedAccessToken struct {
	JTI       uuid.UUID
	UserID    uuid.UUID
	AppID     string
	Reason    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
