package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/keymint/keymint-server/internal/model"
)

var _ model.PasswordVerifier = (*CredentialRepository)(nil)

// CredentialRepository verifies credential pairs against stored bcrypt
// hashes. An unknown identity and a wrong password are indistinguishable to
// the caller; both cost a bcrypt comparison so timing does not reveal which.
type CredentialRepository struct {
	db *Connection
}

func NewCredentialRepository(db *Connection) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// dummyHash is compared against when the identity is unknown to equalize
// response time. It is a bcrypt hash of an unguessable throwaway value.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func (r *CredentialRepository) VerifyPassword(ctx context.Context, identity, password string) (uuid.UUID, error) {
	const query = `SELECT id, password_hash FROM users WHERE identity = $1`

	var id uuid.UUID
	var hash []byte
	err := r.db.QueryRow(ctx, query, identity).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return uuid.Nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return uuid.Nil, model.ErrInvalidCredentials
	}
	return id, nil
}
