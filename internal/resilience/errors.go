// Package resilience provides retry with backoff and the failure taxonomy
// shared by every backend adapter in the fallback chain.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransportError wraps a retryable transport-level failure (rate limit,
// server error, network timeout). The cascade retries these at the current
// tier before escalating.
type TransportError struct {
	Err        error
	StatusCode int
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps an error as retryable with an optional HTTP status.
func NewTransportError(err error, statusCode int) *TransportError {
	return &TransportError{Err: err, StatusCode: statusCode}
}

// PolicyRestrictedError marks a request refused by the backend's content
// policy. Fatal at the current tier; the cascade escalates immediately
// without retrying.
type PolicyRestrictedError struct {
	Err error
}

func (e *PolicyRestrictedError) Error() string { return e.Err.Error() }
func (e *PolicyRestrictedError) Unwrap() error { return e.Err }

// NewPolicyRestrictedError wraps an error as a policy restriction.
func NewPolicyRestrictedError(err error) *PolicyRestrictedError {
	return &PolicyRestrictedError{Err: err}
}

// TruncatedOutputError marks a response the completeness detector judged
// unusable. Escalates; at the last tier it surfaces as an unresolved
// truncation instead of partial data.
type TruncatedOutputError struct {
	Reason string
}

func (e *TruncatedOutputError) Error() string {
	return "truncated output: " + e.Reason
}

// ErrNoStructure is returned when the extractor exhausts every strategy.
// Callers decide whether that is an error or a legitimate empty outcome;
// it is never retried.
var ErrNoStructure = errors.New("no structured output found in response")

// IsTransport returns true if the error (or any error in its chain) is a
// TransportError, or matches common transient network patterns.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
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

// IsPolicyRestricted returns true if the chain contains a PolicyRestrictedError.
func IsPolicyRestricted(err error) bool {
	var pe *PolicyRestrictedError
	return errors.As(err, &pe)
}

// IsTruncated returns true if the chain contains a TruncatedOutputError.
func IsTruncated(err error) bool {
	var te *TruncatedOutputError
	return errors.As(err, &te)
}

// IsTransportHTTPStatus returns true if the HTTP status code indicates a
// retryable server-side issue.
func IsTransportHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// FailureClass names the taxonomy bucket for an error, for attempt records
// and logs.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case IsPolicyRestricted(err):
		return "policy_restricted"
	case IsTruncated(err):
		return "truncated_output"
	case errors.Is(err, ErrNoStructure):
		return "malformed_output"
	case IsTransport(err):
		return "transport"
	default:
		return "other"
	}
}
