package domain

import (
	"errors"
	"time"
)

var (
	ErrSigningKeyNotFound = errors.New("signing key not found")
	ErrSigningKeyExists   = errors.New("signing key already exists")
)

// SigningKey is a per-tenant HMAC key. The raw key material is only ever
// returned to the caller at create/rotate time; persistence keeps the
// AES-GCM ciphertext of the key (in KeyHash) plus a display prefix.
type SigningKey struct {
	ID        string
	TenantID  string
	KeyHash   string
	KeyPrefix string
	CreatedAt time.Time
	RotatedAt *time.Time
}
