package usecase_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/signing"
	"github.com/cronicorn/scheduler/internal/usecase"
)

type stubKeyRepo struct {
	keys map[string]*domain.SigningKey
}

func (r *stubKeyRepo) Create(_ context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error) {
	k := &domain.SigningKey{ID: "key-1", TenantID: tenantID, KeyHash: keyHash, KeyPrefix: keyPrefix, CreatedAt: time.Now()}
	r.keys[tenantID] = k
	return k, nil
}

func (r *stubKeyRepo) Rotate(_ context.Context, tenantID, keyHash, keyPrefix string) (*domain.SigningKey, error) {
	k, ok := r.keys[tenantID]
	if !ok {
		return nil, domain.ErrSigningKeyNotFound
	}
	now := time.Now()
	k.KeyHash = keyHash
	k.KeyPrefix = keyPrefix
	k.RotatedAt = &now
	return k, nil
}

func (r *stubKeyRepo) GetByTenantID(_ context.Context, tenantID string) (*domain.SigningKey, error) {
	k, ok := r.keys[tenantID]
	if !ok {
		return nil, domain.ErrSigningKeyNotFound
	}
	return k, nil
}

func TestSigningKeyCreate_RawKeyDecryptsFromStorage(t *testing.T) {
	master := sha256.Sum256([]byte("master"))
	repo := &stubKeyRepo{keys: map[string]*domain.SigningKey{}}
	u := usecase.NewSigningKeyUsecase(repo, master)

	created, err := u.Create(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.RawKey) != 64 {
		t.Errorf("expected 64 hex chars of raw key, got %d", len(created.RawKey))
	}
	if created.KeyPrefix != created.RawKey[:8] {
		t.Errorf("prefix %q must be the first 8 chars of the raw key", created.KeyPrefix)
	}

	stored := repo.keys["tenant-1"]
	raw, err := signing.Decrypt(master, stored.KeyHash)
	if err != nil {
		t.Fatalf("decrypt stored key: %v", err)
	}
	if string(raw) != created.RawKey {
		t.Error("stored ciphertext must decrypt back to the raw key")
	}
}

func TestSigningKeyCreate_SecondCreateRejected(t *testing.T) {
	master := sha256.Sum256([]byte("master"))
	repo := &stubKeyRepo{keys: map[string]*domain.SigningKey{}}
	u := usecase.NewSigningKeyUsecase(repo, master)

	if _, err := u.Create(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := u.Create(context.Background(), "tenant-1"); !errors.Is(err, domain.ErrSigningKeyExists) {
		t.Errorf("expected ErrSigningKeyExists, got %v", err)
	}
}

func TestSigningKeyRotate(t *testing.T) {
	master := sha256.Sum256([]byte("master"))
	repo := &stubKeyRepo{keys: map[string]*domain.SigningKey{}}
	u := usecase.NewSigningKeyUsecase(repo, master)

	if _, err := u.Rotate(context.Background(), "tenant-1"); !errors.Is(err, domain.ErrSigningKeyNotFound) {
		t.Errorf("rotating a missing key: expected ErrSigningKeyNotFound, got %v", err)
	}

	created, err := u.Create(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rotated, err := u.Rotate(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RawKey == created.RawKey {
		t.Error("rotation must produce a new key")
	}
	if repo.keys["tenant-1"].RotatedAt == nil {
		t.Error("rotation timestamp not set")
	}
}
