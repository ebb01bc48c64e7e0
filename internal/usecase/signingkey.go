package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/cronicorn/scheduler/internal/signing"
)

const keyPrefixLen = 8

// SigningKeyUsecase creates and rotates per-tenant HMAC signing keys. The
// raw key is returned exactly once, at create/rotate time; at rest only
// the AES-GCM ciphertext and a display prefix survive.
type SigningKeyUsecase struct {
	keys      repository.SigningKeyRepository
	masterKey [32]byte
}

func NewSigningKeyUsecase(keys repository.SigningKeyRepository, masterKey [32]byte) *SigningKeyUsecase {
	return &SigningKeyUsecase{keys: keys, masterKey: masterKey}
}

// CreatedKey is the one-time response carrying the raw key material.
type CreatedKey struct {
	RawKey    string
	KeyPrefix string
	Key       *domain.SigningKey
}

// Create generates a key for a tenant that has none yet.
func (u *SigningKeyUsecase) Create(ctx context.Context, tenantID string) (*CreatedKey, error) {
	if _, err := u.keys.GetByTenantID(ctx, tenantID); err == nil {
		return nil, domain.ErrSigningKeyExists
	} else if !errors.Is(err, domain.ErrSigningKeyNotFound) {
		return nil, fmt.Errorf("check existing key: %w", err)
	}
	return u.generate(ctx, tenantID, u.keys.Create)
}

// Rotate replaces an existing key. Outbound requests signed with the old
// key stop verifying immediately — rotation is a hard cutover.
func (u *SigningKeyUsecase) Rotate(ctx context.Context, tenantID string) (*CreatedKey, error) {
	return u.generate(ctx, tenantID, u.keys.Rotate)
}

func (u *SigningKeyUsecase) generate(
	ctx context.Context,
	tenantID string,
	store func(ctx context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error),
) (*CreatedKey, error) {
	raw, err := signing.GenerateRawKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	sealed, err := signing.Encrypt(u.masterKey, []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}

	prefix := raw[:keyPrefixLen]
	key, err := store(ctx, tenantID, sealed, prefix)
	if err != nil {
		return nil, err
	}

	return &CreatedKey{RawKey: raw, KeyPrefix: prefix, Key: key}, nil
}
