package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/keymint/keymint-server/internal/model"
)

const revokedPrefix = "revoked:access:"

var _ model.DenylistStore = (*Denylist)(nil)

// Denylist is a redis-backed denylist. Entries carry a TTL equal to the
// revoked token's remaining validity, so redis expires them natively and the
// periodic sweep has nothing left to reclaim.
type Denylist struct {
	client *redis.Client
}

// NewDenylist creates a redis denylist and verifies the connection.
func NewDenylist(ctx context.Context, client *redis.Client) (*Denylist, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Denylist{client: client}, nil
}

func (d *Denylist) Revoke(ctx context.Context, entry model.RevokedAccessToken) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// The underlying token is already unverifiable on its own expiry.
		return nil
	}

	key := revokedPrefix + entry.JTI.String()
	if err := d.client.Set(ctx, key, entry.Reason, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set denylist entry: %w", err)
	}
	return nil
}

func (d *Denylist) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	exists, err := d.client.Exists(ctx, revokedPrefix+jti.String()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check denylist entry: %w", err)
	}
	return exists > 0, nil
}

// DeleteExpired is a no-op under redis: TTL expiry already bounds the set.
func (d *Denylist) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (d *Denylist) Count(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := d.client.Scan(ctx, cursor, revokedPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan denylist entries: %w", err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
