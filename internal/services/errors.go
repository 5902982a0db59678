package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// UpstreamStatusError is returned when the recommendation service answers
// with a non-2xx status.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("recommendation service returned %d: %s", e.Status, e.Body)
}

// IsRateLimited reports whether err carries an HTTP 429 from upstream.
func IsRateLimited(err error) bool {
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests
	}
	return false
}
