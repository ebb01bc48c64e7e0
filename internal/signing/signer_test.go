package signing_test

import (
	"testing"
	"time"

	"github.com/cronicorn/scheduler/internal/signing"
)

func TestSign_Deterministic(t *testing.T) {
	key := []byte("secret")
	a := signing.Sign(key, 1700000000, `{"ok":true}`)
	b := signing.Sign(key, 1700000000, `{"ok":true}`)
	if a != b {
		t.Errorf("sign not deterministic: %s != %s", a, b)
	}
}

func TestSign_DifferentInputsDifferentSignatures(t *testing.T) {
	key := []byte("secret")
	a := signing.Sign(key, 1700000000, "body-a")
	b := signing.Sign(key, 1700000000, "body-b")
	if a == b {
		t.Errorf("expected different signatures for different bodies")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	key := []byte("secret")
	ts := int64(1700000000)
	body := `{"hello":"world"}`
	sig := signing.Sign(key, ts, body)
	if !signing.Verify(key, ts, body, sig) {
		t.Error("expected signature to verify")
	}
	if signing.Verify(key, ts, body, "deadbeef") {
		t.Error("expected tampered signature to fail verification")
	}
}

func TestHeaders(t *testing.T) {
	key := []byte("secret")
	now := time.Unix(1700000000, 0)
	h := signing.Headers(key, now, "")
	if h[signing.HeaderTimestamp] != "1700000000" {
		t.Errorf("unexpected timestamp header: %s", h[signing.HeaderTimestamp])
	}
	if h[signing.HeaderSignature] != signing.Sign(key, 1700000000, "") {
		t.Errorf("unexpected signature header")
	}
}
