package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/loomhq/loom/internal/domain"
)

// classifyError buckets an executor failure by inspecting the error text.
// Callers that need exact classes should return a pre-classified
// *domain.ExecutionError from the executor instead.
func classifyError(err error) domain.ErrorClass {
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorClassTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline"):
		return domain.ErrorClassTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return domain.ErrorClassRateLimit
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "dns") || strings.Contains(msg, "econn"):
		return domain.ErrorClassNetwork
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "503"):
		return domain.ErrorClassServiceUnavailable
	case strings.Contains(msg, "internal server error") || strings.Contains(msg, "500") || strings.Contains(msg, "server error"):
		return domain.ErrorClassServerError
	default:
		return domain.ErrorClassUnknown
	}
}
