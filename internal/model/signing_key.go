package model

import (
	"context"
	"time"
)

// AlgorithmES256 is the only signing algorithm issued by this server.
// ECDSA over P-256 gives RSA-3072-equivalent security with small keys and
// signatures.
const AlgorithmES256 = "ES256"

// KeyStore defines persistence operations for signing keys.
type KeyStore interface {
	// Create persists a new key. Returns ErrKeyExists when a key with the
	// same kid is already stored.
	Create(ctx context.Context, key SigningKey) error
	// CreateIfNoneActive persists the key only when the store holds no
	// active key, atomically with respect to other callers on any process.
	// Returns ErrKeyExists when an active key is already present.
	CreateIfNoneActive(ctx context.Context, key SigningKey) error
	GetByKid(ctx context.Context, kid string) (SigningKey, error)
	// ListActive returns every key with is_active=true, newest first.
	ListActive(ctx context.Context) ([]SigningKey, error)
	// Retire clears is_active and stamps retired_at. Returns ErrNotFound
	// when no active row matches the kid.
	Retire(ctx context.Context, kid string) error
	CountActive(ctx context.Context) (int, error)
}

// SigningKey represents a stored ECDSA key pair used for access token
// signing. A retired key keeps its material: its public half is still needed
// to verify tokens signed before retirement until they expire on their own.
type SigningKey struct {
	Kid           string
	Algorithm     string
	PublicKeyPEM  []byte
	PrivateKeyPEM []byte
	IsActive      bool
	CreatedAt     time.Time
	RetiredAt     *time.Time
}
