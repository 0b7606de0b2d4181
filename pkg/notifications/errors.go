package notifications

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError names a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// Required returns a ValidationError for an empty field.
func Required(field string) error {
	return ValidationError{Field: field}
}

// NotFoundError reports an unknown entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidTransitionError names the rejected from→to pair.
type InvalidTransitionError struct {
	From DeliveryStatus
	To   DeliveryStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// RateLimitError is a policy denial, not a system fault.
type RateLimitError struct {
	Key   string
	Limit int
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit %d)", e.Key, e.Limit)
}

func (e RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// IsClientError reports whether err belongs to the caller-facing taxonomy
// and must not be retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden)
}
