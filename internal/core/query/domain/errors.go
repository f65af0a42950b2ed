package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for query compilation.
var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("dbi: validation failed")

	// ErrNoUpdate is returned when an UPDATE has no fields to set.
	ErrNoUpdate = errors.New("dbi: no fields to update")

	// ErrUnsupported is returned when a clause is not available for the target dialect.
	ErrUnsupported = errors.New("dbi: unsupported by dialect")
)

// ValidationKind classifies a ValidationError.
type ValidationKind string

const (
	// KindEmptyList is raised by IN and NOT IN with no values.
	KindEmptyList ValidationKind = "empty_list"
	// KindBetweenArity is raised by BETWEEN without exactly two bounds.
	KindBetweenArity ValidationKind = "between_arity"
	// KindNoUpdate is raised by an UPDATE without fields.
	KindNoUpdate ValidationKind = "no_update"
	// KindInvalidValue is raised when a value cannot be rendered.
	KindInvalidValue ValidationKind = "invalid_value"
	// KindInvalidCriteria is raised when a criteria structure is malformed.
	KindInvalidCriteria ValidationKind = "invalid_criteria"
	// KindUnsupported is raised when a clause is not available for the dialect.
	KindUnsupported ValidationKind = "unsupported"
)

// ValidationError reports malformed builder input.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

// NewValidationError creates a ValidationError.
func NewValidationError(kind ValidationKind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("dbi [%s] %s", e.Kind, e.Message)
}

// Is matches ErrValidation and the sentinel that corresponds to the kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrNoUpdate:
		return e.Kind == KindNoUpdate
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

// IsValidation reports whether err is a ValidationError, optionally of one of kinds.
func IsValidation(err error, kinds ...ValidationKind) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if verr.Kind == k {
			return true
		}
	}
	return false
}
