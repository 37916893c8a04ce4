package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/keymint/keymint-server/internal/model"
)

var _ model.KeyStore = (*SigningKeyRepository)(nil)

type SigningKeyRepository struct {
	db *Connection
}

func NewSigningKeyRepository(db *Connection) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

const uniqueViolationCode = "23505"

// bootstrapLockID keys the advisory lock that serializes cold-start key
// creation across processes sharing one database.
const bootstrapLockID int64 = 0x6b65796d696e74 // "keymint"

const insertSigningKeyQuery = `
        INSERT INTO signing_keys (kid, algorithm, public_key_pem, private_key_pem, is_active, created_at, retired_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `

func (r *SigningKeyRepository) Create(ctx context.Context, key model.SigningKey) error {
	_, err := r.db.Exec(ctx, insertSigningKeyQuery,
		key.Kid, key.Algorithm, key.PublicKeyPEM, key.PrivateKeyPEM,
		key.IsActive, key.CreatedAt, key.RetiredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return model.ErrKeyExists
		}
		return fmt.Errorf("failed to create signing key: %w", err)
	}
	return nil
}

func (r *SigningKeyRepository) CreateIfNoneActive(ctx context.Context, key model.SigningKey) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The advisory lock holds until commit or rollback, so two processes
	// bootstrapping an empty store cannot both observe zero active keys.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockID); err != nil {
		return fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM signing_keys WHERE is_active`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count active signing keys: %w", err)
	}
	if count > 0 {
		return model.ErrKeyExists
	}

	_, err = tx.Exec(ctx, insertSigningKeyQuery,
		key.Kid, key.Algorithm, key.PublicKeyPEM, key.PrivateKeyPEM,
		key.IsActive, key.CreatedAt, key.RetiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signing key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SigningKeyRepository) GetByKid(ctx context.Context, kid string) (model.SigningKey, error) {
	const query = `
        SELECT kid, algorithm, public_key_pem, private_key_pem, is_active, created_at, retired_at
        FROM signing_keys WHERE kid = $1
    `
	var key model.SigningKey
	err := r.db.QueryRow(ctx, query, kid).Scan(
		&key.Kid, &key.Algorithm, &key.PublicKeyPEM, &key.PrivateKeyPEM,
		&key.IsActive, &key.CreatedAt, &key.RetiredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SigningKey{}, model.ErrNotFound
		}
		return model.SigningKey{}, fmt.Errorf("failed to get signing key by kid: %w", err)
	}
	return key, nil
}

func (r *SigningKeyRepository) ListActive(ctx context.Context) ([]model.SigningKey, error) {
	const query = `
        SELECT kid, algorithm, public_key_pem, private_key_pem, is_active, created_at, retired_at
        FROM signing_keys WHERE is_active ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active signing keys: %w", err)
	}
	defer rows.Close()

	var keys []model.SigningKey
	for rows.Next() {
		var key model.SigningKey
		if err := rows.Scan(
			&key.Kid, &key.Algorithm, &key.PublicKeyPEM, &key.PrivateKeyPEM,
			&key.IsActive, &key.CreatedAt, &key.RetiredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan signing key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signing keys: %w", err)
	}
	return keys, nil
}

func (r *SigningKeyRepository) Retire(ctx context.Context, kid string) error {
	const query = `
        UPDATE signing_keys SET is_active = FALSE, retired_at = NOW()
        WHERE kid = $1 AND is_active
    `
	tag, err := r.db.Exec(ctx, query, kid)
	if err != nil {
		return fmt.Errorf("failed to retire signing key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *SigningKeyRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM signing_keys WHERE is_active`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active signing keys: %w", err)
	}
	return count, nil
}
