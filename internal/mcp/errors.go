package mcp

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by id-keyed lookups for absent sessions or records.
var ErrNotFound = errors.New("not found")

// ErrCapabilityUnavailable signals that a required provider capability was
// never configured. It is an expected condition, not a fault: callers turn
// it into a scoped error response.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// ValidationError describes a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
