package signing

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/cronicorn/scheduler/internal/domain"
)

// KeyStore is the subset of repository.SigningKeyRepository the
// KeyProvider adapter needs.
type KeyStore interface {
	GetByTenantID(ctx context.Context, tenantID string) (*domain.SigningKey, error)
}

// KeyProvider adapts persisted signing keys to the Dispatcher's
// signing.KeyProvider port. Keys are encrypted at rest with AES-256-GCM
// under a server-held master key rather than one-way hashed: the
// dispatcher must recover the raw key on every request, so an
// irreversible hash (suitable for verifying API keys) can't serve this
// port. domain.SigningKey.KeyHash holds the hex-encoded ciphertext.
type decryptingKeyProvider struct {
	store     KeyStore
	masterKey [32]byte
}

// NewKeyProvider builds a KeyProvider over store, decrypting with
// masterKey (derive it with a KDF upstream if the operator supplies a
// passphrase instead of 32 raw bytes).
func NewKeyProvider(store KeyStore, masterKey [32]byte) *decryptingKeyProvider {
	return &decryptingKeyProvider{store: store, masterKey: masterKey}
}

// GetKey returns the decrypted signing key for tenantID, or (nil, nil)
// when the tenant has no key configured.
func (p *decryptingKeyProvider) GetKey(ctx context.Context, tenantID string) ([]byte, error) {
	stored, err := p.store.GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrSigningKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup signing key: %w", err)
	}
	return Decrypt(p.masterKey, stored.KeyHash)
}

// Encrypt seals raw under masterKey with AES-256-GCM, returning a
// hex-encoded nonce||ciphertext suitable for storage.
func Encrypt(masterKey [32]byte, raw []byte) (string, error) {
	block, err := aes.NewCipher(masterKey[:])
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, raw, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(masterKey [32]byte, ciphertextHex string) ([]byte, error) {
	sealed, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(masterKey[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]
	raw, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return raw, nil
}

// GenerateRawKey returns 32 random bytes, hex-encoded, for a newly created
// or rotated signing key — this is the only time the raw value is ever
// returned to a caller.
func GenerateRawKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
