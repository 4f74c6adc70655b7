package shared

import "fmt"

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// NotFoundError indicates the target row is absent. Maps to HTTP 404.
type NotFoundError struct {
	*DomainError
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s %s not found", entity, id)},
		Entity:      entity,
		ID:          id,
	}
}

// UnauthorizedError indicates a missing or invalid credential. Maps to HTTP 401.
type UnauthorizedError struct {
	*DomainError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{DomainError: &DomainError{Message: message}}
}

// ForbiddenError indicates the wrong role or a non-owner. Maps to HTTP 403.
type ForbiddenError struct {
	*DomainError
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{DomainError: &DomainError{Message: message}}
}

// InvalidTransitionError indicates a state-machine edge that is not permitted
// from the current state. Maps to HTTP 409.
type InvalidTransitionError struct {
	*DomainError
	From string
	To   string
}

func NewInvalidTransitionError(from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{
		DomainError: &DomainError{Message: fmt.Sprintf("cannot transition from %s to %s", from, to)},
		From:        from,
		To:          to,
	}
}

// InsufficientVolumeError indicates a bid or acceptance exceeding the order's
// available volume. Maps to HTTP 409.
type InsufficientVolumeError struct {
	*DomainError
	RequestedKg float64
	AvailableKg float64
}

func NewInsufficientVolumeError(requestedKg, availableKg float64) *InsufficientVolumeError {
	return &InsufficientVolumeError{
		DomainError: &DomainError{
			Message: fmt.Sprintf("requested %.1f kg exceeds available %.1f kg", requestedKg, availableKg),
		},
		RequestedKg: requestedKg,
		AvailableKg: availableKg,
	}
}

// InvalidTokenError indicates a QR hash mismatch or malformed signature. Maps to HTTP 400.
type InvalidTokenError struct {
	*DomainError
}

func NewInvalidTokenError(message string) *InvalidTokenError {
	return &InvalidTokenError{DomainError: &DomainError{Message: message}}
}

// ValidationError indicates a malformed request field. Maps to HTTP 422.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProcessorError wraps a payment-processor failure. Propagated on intent
// creation and capture; logged-only on cancel/refund.
type ProcessorError struct {
	Op  string
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

func NewProcessorError(op string, err error) *ProcessorError {
	return &ProcessorError{Op: op, Err: err}
}
