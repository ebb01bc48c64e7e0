package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cronicorn/scheduler/internal/domain"
	"github.com/cronicorn/scheduler/internal/repository"
	"github.com/cronicorn/scheduler/internal/requestid"
	"github.com/cronicorn/scheduler/internal/signing"
)

// HTTPDispatcher is the production Dispatcher: validates the
// URL against an SSRF guard, resolves the request body, signs the request
// when a signing key is available, fires it within the endpoint's timeout,
// and classifies the outcome. It never returns an error to its caller —
// every failure mode is represented as a failed ExecutionResult.
type HTTPDispatcher struct {
	client          *http.Client
	keys            signing.KeyProvider
	logger          *slog.Logger
	allowPrivateNet bool
	signingRequired bool
}

// NewHTTPDispatcher builds a Dispatcher over a connection-pooled client
// (bounded idle conns, TLS 1.2 floor, bounded redirects); per-request
// deadlines are still set from each endpoint's timeoutMs.
func NewHTTPDispatcher(keys signing.KeyProvider, logger *slog.Logger, allowPrivateNet, signingRequired bool) *HTTPDispatcher {
	return &HTTPDispatcher{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		keys:            keys,
		logger:          logger.With("component", "dispatcher"),
		allowPrivateNet: allowPrivateNet,
		signingRequired: signingRequired,
	}
}

func (d *HTTPDispatcher) Execute(ctx context.Context, ep *domain.Endpoint) repository.ExecutionResult {
	start := time.Now()

	if err := validateURL(ep.URL, d.allowPrivateNet); err != nil {
		msg := "URL not allowed"
		d.logger.WarnContext(ctx, "blocked dispatch", "endpoint_id", ep.ID, "url", ep.URL, "error", err)
		return repository.ExecutionResult{Status: domain.StatusFailed, ErrorMessage: &msg, DurationMs: 0}
	}

	body := resolveBody(ep, time.Now())

	timeout := time.Duration(ep.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultTimeoutMs) * time.Millisecond
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, string(ep.Method), ep.URL, bodyReader)
	if err != nil {
		msg := fmt.Sprintf("build request: %v", err)
		return repository.ExecutionResult{Status: domain.StatusFailed, ErrorMessage: &msg, DurationMs: time.Since(start).Milliseconds()}
	}

	applyStaticHeaders(req, ep.HeadersJSON)

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)
	reqCtx = requestid.WithRequestID(reqCtx, reqID)

	if err := d.attachSignature(reqCtx, req, ep.TenantID, body); err != nil {
		msg := err.Error()
		return repository.ExecutionResult{Status: domain.StatusFailed, ErrorMessage: &msg, DurationMs: time.Since(start).Milliseconds()}
	}

	d.logger.InfoContext(reqCtx, "sending request", "endpoint_id", ep.ID, "method", ep.Method, "url", ep.URL)

	resp, err := d.client.Do(req)
	if err != nil {
		msg := err.Error()
		d.logger.ErrorContext(reqCtx, "request failed", "endpoint_id", ep.ID, "error", err)
		return repository.ExecutionResult{Status: domain.StatusFailed, ErrorMessage: &msg, DurationMs: time.Since(start).Milliseconds()}
	}
	defer func() { _ = resp.Body.Close() }()

	maxKb := ep.MaxResponseSizeKb
	if maxKb <= 0 {
		maxKb = domain.DefaultMaxResponseSizeKb
	}
	limited := io.LimitReader(resp.Body, maxKb*1024+1)
	raw, _ := io.ReadAll(limited)
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool

	duration := time.Since(start)
	statusCode := resp.StatusCode
	respBody := domain.TruncateResponseBody(string(raw), maxKb)

	status := domain.StatusFailed
	if statusCode >= 200 && statusCode < 300 {
		status = domain.StatusSuccess
	}

	var errMsg *string
	if status == domain.StatusFailed {
		m := fmt.Sprintf("unexpected status code: %d", statusCode)
		errMsg = &m
	}

	d.logger.InfoContext(reqCtx, "received response", "endpoint_id", ep.ID, "status", statusCode, "duration", duration)

	return repository.ExecutionResult{
		Status:       status,
		StatusCode:   &statusCode,
		ResponseBody: respBody,
		DurationMs:   duration.Milliseconds(),
		ErrorMessage: errMsg,
	}
}

func (d *HTTPDispatcher) attachSignature(ctx context.Context, req *http.Request, tenantID, body string) error {
	key, err := d.keys.GetKey(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("fetch signing key: %w", err)
	}
	if key == nil {
		if d.signingRequired {
			return fmt.Errorf("signing required but no key available for tenant %s", tenantID)
		}
		return nil
	}
	for k, v := range signing.Headers(key, time.Now(), body) {
		req.Header.Set(k, v)
	}
	return nil
}

// resolveBody prefers a fresh AI body hint, then the static body, then no body.
func resolveBody(ep *domain.Endpoint, now time.Time) string {
	if ep.BodyHintFresh(now) && ep.AIHintBodyJSON != nil {
		return *ep.AIHintBodyJSON
	}
	if ep.BodyJSON != nil {
		return *ep.BodyJSON
	}
	return ""
}

func applyStaticHeaders(req *http.Request, headersJSON string) {
	headers, err := parseHeaders(headersJSON)
	if err != nil {
		return
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// validateURL rejects everything but http(s) and, unless allowPrivateNet is
// set, blocks loopback, RFC1918, link-local, and 169.254.x targets.
func validateURL(raw string, allowPrivateNet bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host")
	}
	if allowPrivateNet {
		return nil
	}

	host := u.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil {
		// Can't resolve — let the HTTP client surface the real error rather
		// than guessing; literal-IP checks below still cover the common SSRF case.
		if ip := net.ParseIP(host); ip != nil {
			ips = []net.IP{ip}
		}
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("address %s is not allowed", ip)
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}
