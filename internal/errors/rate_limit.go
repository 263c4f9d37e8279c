package errors

import "errors"

// RateLimitError represents a throttling signal from any provider API
// (HTTP 429 or a documented quota header).
type RateLimitError struct {
	Source  string
	Message string
}

func (e *RateLimitError) Error() string {
	if e.Source == "" {
		return e.Message
	}
	return e.Source + ": " + e.Message
}

// NewRateLimitError creates a new RateLimitError with the given message
func NewRateLimitError(source, message string) *RateLimitError {
	return &RateLimitError{Source: source, Message: message}
}

// IsRateLimitError reports whether err is a RateLimitError (even when wrapped).
func IsRateLimitError(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}
