package retryengine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Reason labels why a retry was attempted, surfaced to on-retry telemetry.
type Reason string

const (
	ReasonRateLimited    Reason = "rate_limited"
	ReasonServerError    Reason = "server_error"
	ReasonTimeout        Reason = "timeout"
	ReasonConnectFailed  Reason = "connect_failed"
	ReasonTLSHandshake   Reason = "tls_handshake"
	ReasonStreamStall    Reason = "stream_stall"
	ReasonNonRetryable   Reason = "non_retryable"
)

// Decision is the classifier's verdict for one attempt's outcome.
type Decision struct {
	Retry  bool
	Reason Reason
}

// ClassifyHTTPStatus implements the transient/non-transient split from §4.E:
// 408/429/5xx are transient, other 4xx are not.
func ClassifyHTTPStatus(status int) Decision {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		reason := ReasonTimeout
		if status == http.StatusTooManyRequests {
			reason = ReasonRateLimited
		}
		return Decision{Retry: true, Reason: reason}
	case status >= 500 && status < 600:
		return Decision{Retry: true, Reason: ReasonServerError}
	case status >= 400 && status < 500:
		return Decision{Retry: false, Reason: ReasonNonRetryable}
	default:
		return Decision{Retry: false, Reason: ReasonNonRetryable}
	}
}

// ClassifyError inspects a transport-level error (no HTTP status available)
// and decides whether it's transient. Deadline and I/O timeouts, connection
// failures, TLS handshake failures, and EOF (a stalled stream) are
// transient; cancellation and everything else is not.
func ClassifyError(err error) Decision {
	if err == nil {
		return Decision{Retry: false}
	}
	if errors.Is(err, context.Canceled) {
		return Decision{Retry: false, Reason: ReasonNonRetryable}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Retry: true, Reason: ReasonTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Retry: true, Reason: ReasonTimeout}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls handshake"):
		return Decision{Retry: true, Reason: ReasonTLSHandshake}
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "network is unreachable"):
		return Decision{Retry: true, Reason: ReasonConnectFailed}
	case strings.Contains(msg, "eof"):
		return Decision{Retry: true, Reason: ReasonStreamStall}
	}

	return Decision{Retry: false, Reason: ReasonNonRetryable}
}

// ParseRetryAfter parses an HTTP Retry-After header value as either a
// non-negative integer number of seconds, or an HTTP-date (RFC 7231). A date
// already in the past yields zero, never a negative duration.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delta := when.Sub(now)
		if delta < 0 {
			delta = 0
		}
		return delta, true
	}
	return 0, false
}
