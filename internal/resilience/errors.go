package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry on the same backend
// (e.g., 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaError wraps an error caused by an exhausted usage allowance. Unlike a
// transient failure, a quota failure must not be retried on the same backend;
// the orchestrator advances to the next candidate instead.
type QuotaError struct {
	Err        error
	StatusCode int
}

func (e *QuotaError) Error() string {
	return e.Err.Error()
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// NewQuotaError wraps an error as a quota/rate-limit failure.
func NewQuotaError(err error, statusCode int) *QuotaError {
	return &QuotaError{Err: err, StatusCode: statusCode}
}

// quotaPhrases are matched case-insensitively against error messages when no
// structured signal is available. Best-effort: providers word these freely.
var quotaPhrases = []string{
	"rate limit",
	"rate_limit",
	"quota",
	"tokens per day",
	"exceeded",
	"too many requests",
}

// IsQuotaSignal reports whether err looks like an exhausted usage allowance
// rather than a transient fault. It prefers structured signals (a QuotaError
// in the chain, HTTP 429) and falls back to message inspection.
func IsQuotaSignal(err error) bool {
	if err == nil {
		return false
	}

	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}

	var te *TransientError
	if errors.As(err, &te) && te.StatusCode == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range quotaPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures). Quota failures are not
// transient: they are handled by candidate advancement, not same-backend retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsQuotaSignal(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// server-side issue that is safe to retry on the same backend.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
