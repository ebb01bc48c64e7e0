// Package signing implements HMAC-SHA256 request signing for outbound
// dispatcher calls: X-Cronicorn-Timestamp and X-Cronicorn-Signature.
package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	HeaderTimestamp = "X-Cronicorn-Timestamp"
	HeaderSignature = "X-Cronicorn-Signature"
)

// KeyProvider resolves the signing key material for a tenant. Returns
// (nil, nil) when the tenant has no signing key configured.
type KeyProvider interface {
	GetKey(ctx context.Context, tenantID string) ([]byte, error)
}

// Sign is a pure function: sign(key, ts, body) is deterministic for
// identical inputs. Returns the lowercase hex HMAC-SHA256 over
// "{ts}.{body}".
func Sign(key []byte, ts int64, body string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload(ts, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(key []byte, ts int64, body, signature string) bool {
	expected := Sign(key, ts, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func payload(ts int64, body string) string {
	return fmt.Sprintf("%d.%s", ts, body)
}

// Headers returns the timestamp/signature header pair for a request fired
// at `now` with `body` (empty string when there is no body), using key.
func Headers(key []byte, now time.Time, body string) map[string]string {
	ts := now.Unix()
	return map[string]string{
		HeaderTimestamp: fmt.Sprintf("%d", ts),
		HeaderSignature: Sign(key, ts, body),
	}
}
