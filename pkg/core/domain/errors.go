package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidURL         = errors.New("invalid destination url")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrAliasInvalid       = errors.New("invalid custom alias")
	ErrInvalidAsset       = errors.New("invalid qr image")
	ErrDuplicateKey       = errors.New("identifier already exists")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("not the owner of this link")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
	ErrExternalLookup     = errors.New("external lookup failed")
)

// ErrAliasTaken is returned when a custom alias loses the uniqueness race.
// It matches ErrDuplicateKey as well.
var ErrAliasTaken = fmt.Errorf("custom alias already taken: %w", ErrDuplicateKey)

// ValidationError ties a validation failure to the request field that caused it.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err indicates a uniqueness conflict.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateKey) }
