package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keymint/keymint-server/internal/model"
)

var _ model.DenylistStore = (*DenylistRepository)(nil)

type DenylistRepository struct {
	db *Connection
}

func NewDenylistRepository(db *Connection) *DenylistRepository {
	return &DenylistRepository{db: db}
}

// Revoke inserts a denylist entry. A duplicate jti means the token is
// already denylisted, which is the desired end state, not a conflict.
func (r *DenylistRepository) Revoke(ctx context.Context, entry model.RevokedAccessToken) error {
	const query = `
        INSERT INTO revoked_access_tokens (jti, user_id, app_id, reason, expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (jti) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query,
		entry.JTI, entry.UserID, entry.AppID, entry.Reason, entry.ExpiresAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert denylist entry: %w", err)
	}
	return nil
}

func (r *DenylistRepository) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM revoked_access_tokens WHERE jti = $1 AND expires_at > NOW()
        )
    `
	var revoked bool
	if err := r.db.QueryRow(ctx, query, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("failed to check denylist: %w", err)
	}
	return revoked, nil
}

func (r *DenylistRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM revoked_access_tokens WHERE expires_at <= NOW()`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired denylist entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *DenylistRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM revoked_access_tokens`
	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count denylist entries: %w", err)
	}
	return count, nil
}
