package probe

import (
	"context"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// CheckResult is the unified result of a single probe.
//
// Fields:
//   - Status: the three-way classification; always valid.
//   - StatusCode: HTTP status code when a response arrived; 0 for transport errors.
//   - Message: response status line or the transport error text.
type CheckResult struct {
	Status     domain.Status
	StatusCode int
	LatencyMS  float64
	Message    string
}

// Checker performs a single check for a given target URL. Implementations
// never return transport failures to the caller; they classify them as
// domain.StatusError.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// Classify maps a transport outcome to a status. Only 200 counts as available.
func Classify(statusCode int, transportErr error) domain.Status {
	switch {
	case transportErr != nil:
		return domain.StatusError
	case statusCode == 200:
		return domain.StatusAvailable
	default:
		return domain.StatusUnavailable
	}
}
