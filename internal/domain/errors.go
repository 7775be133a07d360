package domain

import (
	"errors"
	"fmt"
)

// ErrPricingUnavailable is wrapped by every failed pricing service call.
var ErrPricingUnavailable = errors.New("pricing service unavailable")

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// Invalid is shorthand for a field-level validation failure.
func Invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// InsufficientSeatsError rejects a shared booking that would overfill its
// schedule. Free is the seat count observed when the insert was refused.
type InsufficientSeatsError struct {
	Requested int
	Free      int
}

func (e InsufficientSeatsError) Error() string {
	return fmt.Sprintf("not enough seats: requested %d, free %d", e.Requested, e.Free)
}

// PricingError describes one failed call to the pricing service.
type PricingError struct {
	Call   string
	Status int
	Err    error
}

func (e *PricingError) Error() string {
	msg := "pricing " + e.Call
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PricingError) Unwrap() error { return e.Err }

// Is makes every PricingError match ErrPricingUnavailable.
func (e *PricingError) Is(target error) bool {
	return target == ErrPricingUnavailable
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func AsInsufficientSeats(err error) (InsufficientSeatsError, bool) {
	var target InsufficientSeatsError
	ok := errors.As(err, &target)
	return target, ok
}
