package powerbi

import (
	"fmt"
	"time"
)

// RateLimitError reports a 429 response from the service. RetryAfter carries
// the server's Retry-After hint, zero when the header was absent or
// unparseable.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by service, retry after %s", e.RetryAfter)
	}
	return "rate limited by service"
}

// StatusError reports any other non-2xx response. Requests failing with a
// StatusError are not retried.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
