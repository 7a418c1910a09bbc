package gemini

import (
	"fmt"
	"time"
)

// QuotaError reports a rate-limit response, with the server-suggested retry
// delay and quota figure when the API included them.
type QuotaError struct {
	RetryAfter time.Duration
	Quota      string
	Message    string
}

func (e *QuotaError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "quota exceeded"
	}
	if e.Quota != "" {
		return fmt.Sprintf("gemini quota exceeded (%s): %s", e.Quota, msg)
	}
	return "gemini quota exceeded: " + msg
}

func (e *QuotaError) HTTPStatusCode() int { return 429 }

// HTTPError is any non-quota, non-safety API failure.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// BlockedError reports a content-safety block. It is never retried.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("gemini blocked content: %s", e.Reason)
}
