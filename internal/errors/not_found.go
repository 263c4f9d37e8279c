package errors

import (
	"errors"
	"fmt"
)

// NotFoundError represents a detail lookup for an id the provider does not know.
type NotFoundError struct {
	Source     string
	ExternalID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no book with id %q", e.Source, e.ExternalID)
}

// NewNotFoundError creates a NotFoundError for the given source and external id.
func NewNotFoundError(source, externalID string) *NotFoundError {
	return &NotFoundError{Source: source, ExternalID: externalID}
}

// IsNotFound reports whether err is a NotFoundError (even when wrapped).
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
