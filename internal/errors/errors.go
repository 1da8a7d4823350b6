package errors

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes returned to API callers.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeNotRefundable    = "NOT_REFUNDABLE"
	CodeConflict         = "CONFLICT"
	CodeProvider         = "PROVIDER_ERROR"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrConflict         = errors.New("concurrent operation in progress")
)

// ValidationError reports malformed or missing input. It never accompanies a
// state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CapacityError reports insufficient inventory for a requested resource and
// date range. Any partial holds from the same request are released before it
// is returned.
type CapacityError struct {
	ResourceID string
	Date       string
}

func (e *CapacityError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("capacity exceeded for resource %s on %s", e.ResourceID, e.Date)
	}
	return fmt.Sprintf("capacity exceeded for resource %s", e.ResourceID)
}

// NotRefundableError reports a refund attempt against a booking whose state
// does not admit refunds.
type NotRefundableError struct {
	BookingID string
	Status    string
}

func (e *NotRefundableError) Error() string {
	return fmt.Sprintf("booking %s is not refundable in status %s", e.BookingID, e.Status)
}

// ProviderError reports a payment-provider API failure. Retryable errors were
// already retried once at the call boundary before this surfaces.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCapacity reports whether err is a CapacityError.
func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// IsNotRefundable reports whether err is a NotRefundableError.
func IsNotRefundable(err error) bool {
	var nr *NotRefundableError
	return errors.As(err, &nr)
}

// IsProvider reports whether err is a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
