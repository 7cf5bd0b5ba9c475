package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// statusCoder is implemented by transport errors that carry an HTTP status,
// e.g. notify.HTTPError.
type statusCoder interface {
	StatusCode() int
}

// Transient reports whether an error looks recoverable: network hiccups,
// timeouts, throttling, and 5xx responses. Context cancellation and 4xx
// responses are not worth retrying.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == 429 || code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") {
		return true
	}

	return false
}
