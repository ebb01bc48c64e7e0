package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SigningKeyRepository persists encrypted signing keys, one per tenant.
type SigningKeyRepository struct {
	pool *pgxpool.Pool
}

func NewSigningKeyRepository(pool *pgxpool.Pool) *SigningKeyRepository {
	return &SigningKeyRepository{pool: pool}
}

func (r *SigningKeyRepository) Create(ctx context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO signing_keys (tenant_id, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, tenant_id, key_hash, key_prefix, created_at, rotated_at`,
		tenantID, keyHash, keyPrefix,
	)
	return scanSigningKey(row)
}

func (r *SigningKeyRepository) Rotate(ctx context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE signing_keys
		SET    key_hash = $2, key_prefix = $3, rotated_at = NOW()
		WHERE  tenant_id = $1
		RETURNING id, tenant_id, key_hash, key_prefix, created_at, rotated_at`,
		tenantID, keyHash, keyPrefix,
	)
	return scanSigningKey(row)
}

func (r *SigningKeyRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.SigningKey, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, key_hash, key_prefix, created_at, rotated_at
		FROM   signing_keys
		WHERE  tenant_id = $1`, tenantID)
	return scanSigningKey(row)
}

func scanSigningKey(row pgx.Row) (*domain.SigningKey, error) {
	var k domain.SigningKey
	err := row.Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt, &k.RotatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSigningKeyNotFound
		}
		return nil, fmt.Errorf("scan signing key: %w", err)
	}
	return &k, nil
}
