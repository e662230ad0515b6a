package httpclient

import (
	"fmt"
	"time"
)

// StatusError describes a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unexpected status"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, msg, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}
