package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrCircuitOpen is returned when a breaker rejects a call without
// contacting the service.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrRateLimited is returned when the rate limiter denies a call. Callers
// must treat it as "defer or skip this cycle", never block on it.
var ErrRateLimited = errors.New("rate limit exceeded")

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as a transient service failure eligible for
// retry. Validation errors must never be marked.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err looks like a transient service failure:
// explicitly marked, a network timeout, a cancelled deadline, or one of
// the usual connection-level failure strings.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		// Fail-fast signals are handled by the caller, retrying them
		// defeats the point of the breaker/limiter.
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection closed"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "EOF"):
		return true
	}
	return false
}
