package repository

import (
	"context"

	"github.com/cronicorn/scheduler/internal/domain"
)

// SigningKeyRepository persists encrypted signing keys. Callers store the
// AES-GCM ciphertext of the raw key in keyHash; signing.KeyProvider
// decrypts it back to the raw bytes when a request is signed.
type SigningKeyRepository interface {
	Create(ctx context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error)
	Rotate(ctx context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error)
	GetByTenantID(ctx context.Context, tenantID string) (*domain.SigningKey, error)
}
