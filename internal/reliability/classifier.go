// Package reliability centralizes the retry decisions the call path
// makes: which upstream failures are transient, and how long to wait
// before trying again.
package reliability

import "time"

// IsRetryableHTTPStatus classifies bootstrap and model-endpoint HTTP
// responses. Auth and validation failures are permanent; throttling and
// server-side faults are worth another attempt.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableRealtimeMessageType classifies error codes from the hosted
// speech service's event stream. A retryable code means a fresh call
// could succeed; the session that produced it is already dead either
// way.
func IsRetryableRealtimeMessageType(messageType string) bool {
	switch messageType {
	case "rate_limited", "rate_limit_exceeded", "server_error",
		"service_unavailable", "session_capacity":
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
