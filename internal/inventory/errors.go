package inventory

import (
	"errors"
	"slices"
	"strings"
)

var (
	// ErrValidation is returned when a submission or query argument is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when no visible rows exist for a snapshot name.
	ErrNotFound = errors.New("snapshot not found")
	// ErrForbidden is returned when a non-admin calls an admin operation.
	ErrForbidden = errors.New("admin privileges required")
)

// ValidationError lists the offending fields of a rejected submission.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	slices.Sort(parts)
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
