package database

import (
	"math/rand/v2"
	"strings"
	"time"
)

const retryJitterFraction = 0.25

// retryBackoff returns the backoff duration for the given attempt (0-indexed)
// with ±25% jitter: base, 2*base, 4*base, ...
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base << attempt
	jitter := time.Duration(float64(d) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
	return d + jitter
}

// isConnectionError reports whether err looks like a network failure worth
// retrying, as opposed to a rejected password or a bad database index.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	connPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"connect: connection",
		"dial tcp",
		"EOF",
		"connection timed out",
		"LOADING",
	}
	for _, p := range connPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
