package errors

import "errors"

// InvalidQueryError represents a malformed or empty search query, rejected
// before any network call.
type InvalidQueryError struct {
	Message string
}

func (e *InvalidQueryError) Error() string {
	return e.Message
}

// NewInvalidQueryError creates an InvalidQueryError with the provided message.
func NewInvalidQueryError(message string) *InvalidQueryError {
	return &InvalidQueryError{Message: message}
}

// IsInvalidQuery reports whether err is an InvalidQueryError (even when wrapped).
func IsInvalidQuery(err error) bool {
	var target *InvalidQueryError
	return errors.As(err, &target)
}

// UnknownSourceError represents a source id that is not configured in the registry.
type UnknownSourceError struct {
	SourceID string
}

func (e *UnknownSourceError) Error() string {
	return "unknown source: " + e.SourceID
}

// NewUnknownSourceError creates an UnknownSourceError for the given source id.
func NewUnknownSourceError(sourceID string) *UnknownSourceError {
	return &UnknownSourceError{SourceID: sourceID}
}

// IsUnknownSource reports whether err is an UnknownSourceError (even when wrapped).
func IsUnknownSource(err error) bool {
	var target *UnknownSourceError
	return errors.As(err, &target)
}
