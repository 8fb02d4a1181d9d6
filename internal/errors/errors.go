package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized          = errors.New("user is not authorized")
	ErrForbidden             = errors.New("operation is forbidden for user")
	ErrOrderNotFound         = errors.New("order not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrBatchNotFound         = errors.New("batch not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrIntentNotFound        = errors.New("checkout intent not found or expired")
)

// Kind classifies an error for the boundary that reports it.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindAuthRequired     Kind = "auth_required"
	KindForbidden        Kind = "forbidden"
	KindEventUnavailable Kind = "event_unavailable"
	KindAvailability     Kind = "availability"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindPaymentFailed    Kind = "payment_failed"
	KindPersistence      Kind = "persistence"
)

// Error is the single error type returned by the service layer.
// Violations carries every problem found when several are collected at once.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Violations) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Violations, "; "))
	}
	if e.Err != nil && e.Kind == KindPersistence {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string, violations ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Violations: violations}
}

func AuthRequired(message string) *Error {
	return &Error{Kind: KindAuthRequired, Message: message, Err: ErrUnauthorized}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message, Err: ErrForbidden}
}

func EventUnavailable(message string) *Error {
	return &Error{Kind: KindEventUnavailable, Message: message}
}

func Availability(violations []string) *Error {
	return &Error{Kind: KindAvailability, Message: "tickets are not available", Violations: violations}
}

func NotFound(sentinel error, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%v: %s", sentinel, id), Err: sentinel}
}

func OrderNotFound(id string) *Error {
	return NotFound(ErrOrderNotFound, id)
}

func InvalidState(message string) *Error {
	return &Error{Kind: KindInvalidState, Message: message}
}

func PaymentFailed(message string, err error) *Error {
	return &Error{Kind: KindPaymentFailed, Message: message, Err: err}
}

// Persistence wraps a store failure with the operation that hit it.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: "failed to " + op, Err: err}
}

// KindOf reports the kind of err. Errors outside the taxonomy count as persistence failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return KindAuthRequired
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrBatchNotFound), errors.Is(err, ErrIntentNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientInventory):
		return KindAvailability
	}
	return KindPersistence
}

// ViolationsOf returns the collected violations of err, if any.
func ViolationsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Violations
	}
	return nil
}

func IsValidationError(err error) bool   { return KindOf(err) == KindValidation }
func IsNotFoundError(err error) bool     { return KindOf(err) == KindNotFound }
func IsAvailabilityError(err error) bool { return KindOf(err) == KindAvailability }
func IsInvalidStateError(err error) bool { return KindOf(err) == KindInvalidState }
