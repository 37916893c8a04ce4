package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines the user-record operations the token core consumes.
// Registration, password hashing and profile management live outside this
// service.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetTokenVersion(ctx context.Context, id uuid.UUID) (int64, error)
	// BumpTokenVersion increments the version by one. The version only ever
	// grows; every outstanding access token carrying the old value becomes
	// unverifiable.
	BumpTokenVersion(ctx context.Context, id uuid.UUID) (int64, error)
}

// User represents a stored identity as seen by the token core.
type User struct {
	ID           uuid.UUID
	AppID        string
	Role         string
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
