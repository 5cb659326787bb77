package domain

import (
	"context"
	"errors"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("order not found")
	ErrInvalidState     = errors.New("order is in an invalid state for this operation")
	ErrPaymentFailed    = errors.New("payment confirmation failed")
	ErrGenerationFailed = errors.New("fortune generation failed")
	ErrUpstreamTimeout  = errors.New("upstream provider timed out")
	ErrDuplicateFortune = errors.New("fortune already exists for order")
)

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Kind classifies err into a stable, low-cardinality label.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// Retryable reports whether re-issuing the same request may succeed.
func Retryable(err error) bool {
	switch Kind(err) {
	case "generation_failed", "timeout", "payment_failed":
		return true
	}
	return false
}
