package scheduler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/scheduler"
	"github.com/cronicorn/scheduler/internal/signing"
)

type staticKeyProvider struct {
	key []byte
}

func (p *staticKeyProvider) GetKey(_ context.Context, _ string) ([]byte, error) {
	return p.key, nil
}

func testEndpoint(url string) *domain.Endpoint {
	return &domain.Endpoint{
		ID:                "ep-1",
		TenantID:          "tenant-1",
		URL:               url,
		Method:            domain.MethodPost,
		TimeoutMs:         5000,
		MaxResponseSizeKb: 100,
	}
}

func TestDispatcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	result := d.Execute(context.Background(), testEndpoint(srv.URL))

	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Status, result.ErrorMessage)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusOK {
		t.Errorf("expected status code 200, got %v", result.StatusCode)
	}
	if result.ResponseBody != `{"ok":true}` {
		t.Errorf("unexpected body %q", result.ResponseBody)
	}
}

func TestDispatcher_Non2xxIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	result := d.Execute(context.Background(), testEndpoint(srv.URL))

	if result.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status code 500, got %v", result.StatusCode)
	}
	if result.ErrorMessage == nil {
		t.Error("expected an error message for a 5xx response")
	}
}

func TestDispatcher_BlockedURLs(t *testing.T) {
	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), false, false)

	for _, url := range []string{
		"ftp://example.com/file",
		"http://127.0.0.1:9/hook",
		"http://localhost/hook",
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.5/internal",
		"http://192.168.1.1/admin",
	} {
		result := d.Execute(context.Background(), testEndpoint(url))
		if result.Status != domain.StatusFailed {
			t.Errorf("%s: expected failed, got %s", url, result.Status)
			continue
		}
		if result.ErrorMessage == nil || *result.ErrorMessage != "URL not allowed" {
			t.Errorf("%s: expected %q, got %v", url, "URL not allowed", result.ErrorMessage)
		}
		if result.DurationMs != 0 {
			t.Errorf("%s: expected zero duration for a blocked URL, got %d", url, result.DurationMs)
		}
	}
}

func TestDispatcher_AllowPrivateNetOverridesGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	result := d.Execute(context.Background(), testEndpoint(srv.URL))

	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected success against loopback with allowPrivateNet, got %s", result.Status)
	}
}

func TestDispatcher_SignsRequestWhenKeyPresent(t *testing.T) {
	key := []byte("test-signing-key")
	body := `{"hello":"world"}`

	var gotTS, gotSig, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTS = r.Header.Get(signing.HeaderTimestamp)
		gotSig = r.Header.Get(signing.HeaderSignature)
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.BodyJSON = &body

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{key: key}, testLogger(), true, false)
	result := d.Execute(context.Background(), ep)

	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", result.Status, result.ErrorMessage)
	}
	if gotBody != body {
		t.Errorf("body mismatch: %q", gotBody)
	}
	ts, err := strconv.ParseInt(gotTS, 10, 64)
	if err != nil {
		t.Fatalf("timestamp header %q is not unix seconds: %v", gotTS, err)
	}
	if !signing.Verify(key, ts, body, gotSig) {
		t.Errorf("signature %q does not verify over %d.%s", gotSig, ts, body)
	}
}

func TestDispatcher_SigningRequiredButNoKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the target when signing is required and no key exists")
	}))
	defer srv.Close()

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, true)
	result := d.Execute(context.Background(), testEndpoint(srv.URL))

	if result.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.ErrorMessage == nil || !strings.Contains(*result.ErrorMessage, "signing required") {
		t.Errorf("expected a signing-required error, got %v", result.ErrorMessage)
	}
}

func TestDispatcher_TruncatesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 300*1024)))
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.MaxResponseSizeKb = 1

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	result := d.Execute(context.Background(), ep)

	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if len(result.ResponseBody) != 1024 {
		t.Errorf("expected body truncated to 1024 bytes, got %d", len(result.ResponseBody))
	}
}

func TestDispatcher_TimeoutIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.TimeoutMs = 50

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	result := d.Execute(context.Background(), ep)

	if result.Status != domain.StatusFailed {
		t.Fatalf("expected failed on timeout, got %s", result.Status)
	}
	if result.StatusCode != nil {
		t.Errorf("expected no status code on a network timeout, got %d", *result.StatusCode)
	}
}

func TestDispatcher_BodyHintOverridesStatic(t *testing.T) {
	static := `{"source":"static"}`
	hinted := `{"source":"hint"}`
	future := time.Now().Add(time.Hour)

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.BodyJSON = &static
	ep.AIHintBodyJSON = &hinted
	ep.AIHintBodyExpiresAt = &future

	d := scheduler.NewHTTPDispatcher(&staticKeyProvider{}, testLogger(), true, false)
	if result := d.Execute(context.Background(), ep); result.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if gotBody != hinted {
		t.Errorf("expected hinted body %q, got %q", hinted, gotBody)
	}

	// Expired hint falls back to the static body.
	past := time.Now().Add(-time.Hour)
	ep.AIHintBodyExpiresAt = &past
	if result := d.Execute(context.Background(), ep); result.Status != domain.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if gotBody != static {
		t.Errorf("expected static body %q after hint expiry, got %q", static, gotBody)
	}
}
