package errors

import (
	"errors"
	"fmt"
)

// ProviderUnavailableError represents an unreachable provider or a 5xx
// response from one.
type ProviderUnavailableError struct {
	Source  string
	Message string
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// NewProviderUnavailableError creates a ProviderUnavailableError for the given source.
func NewProviderUnavailableError(source, message string) *ProviderUnavailableError {
	return &ProviderUnavailableError{Source: source, Message: message}
}

// IsProviderUnavailable reports whether err is a ProviderUnavailableError (even when wrapped).
func IsProviderUnavailable(err error) bool {
	var target *ProviderUnavailableError
	return errors.As(err, &target)
}

// TimeoutError represents a per-source deadline expiry during aggregation.
type TimeoutError struct {
	Source string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request deadline exceeded", e.Source)
}

// NewTimeoutError creates a TimeoutError for the given source.
func NewTimeoutError(source string) *TimeoutError {
	return &TimeoutError{Source: source}
}

// IsTimeout reports whether err is a TimeoutError (even when wrapped).
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
