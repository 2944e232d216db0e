package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrCouponInvalid signals a coupon that cannot be applied to the order.
	ErrCouponInvalid = errors.New("coupon invalid")
	// ErrDiscountOutOfRange signals a discount value outside the option's allowed range.
	ErrDiscountOutOfRange = errors.New("discount value out of range")
	// ErrDiscountUnavailable signals an applied discount that is used, expired or foreign.
	ErrDiscountUnavailable = errors.New("discount unavailable")
	// ErrCourseUnavailable signals a course that cannot be sold.
	ErrCourseUnavailable = errors.New("course unavailable")
	// ErrInvalidTransition signals a forbidden order or payment state change.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrConflict signals a concurrent modification.
	ErrConflict = errors.New("conflict")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid creates a validation error for a field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError carries the rejected state change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrInvalidTransition.Error(), e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
