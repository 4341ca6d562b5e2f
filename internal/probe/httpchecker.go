package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	maxDrainBytes    = 64 * 1024
)

type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPChecker builds a checker whose client gives up after timeout.
// insecure disables TLS certificate verification.
func NewHTTPChecker(timeout time.Duration, insecure bool) *HTTPChecker {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}
	return &HTTPChecker{
		Client:    &http.Client{Timeout: timeout, Transport: tr},
		UserAgent: DefaultUserAgent,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Status: Classify(0, err), Message: err.Error()}
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Status: Classify(0, err), Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return CheckResult{
		Status:     Classify(resp.StatusCode, nil),
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
}
