package gemini

import (
	"errors"
	"fmt"
)

// The analysis runner classifies per-file faults by these types: rate-limit
// exhaustion stops the whole run, the others skip the file and continue.

// RateLimitError is returned when the upstream API reports quota
// exhaustion. It is never retried inside this package.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("gemini rate limit exhausted: %s", e.Message)
}

// NetworkError wraps transport-level failures reaching the API.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gemini network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response that is neither a rate limit nor a
// transport failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error: status=%d, message=%s", e.StatusCode, e.Message)
}

// ParseError is returned when a response body cannot be interpreted.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gemini response parse error: %s", e.Message)
}

func IsRateLimit(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
