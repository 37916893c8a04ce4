package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/keymint/keymint-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	const query = `
        SELECT id, app_id, role, token_version, created_at, updated_at
        FROM users WHERE id = $1
    `
	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.AppID, &user.Role, &user.TokenVersion,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	const query = `SELECT token_version FROM users WHERE id = $1`
	var version int64
	err := r.db.QueryRow(ctx, query, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get token version: %w", err)
	}
	return version, nil
}

// BumpTokenVersion increments the version in place so it only ever grows,
// regardless of concurrent bumps.
func (r *UserRepository) BumpTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	const query = `
        UPDATE users SET token_version = token_version + 1, updated_at = NOW()
        WHERE id = $1
        RETURNING token_version
    `
	var version int64
	err := r.db.QueryRow(ctx, query, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to bump token version: %w", err)
	}
	return version, nil
}
