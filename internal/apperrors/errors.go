package apperrors

import (
	"errors"

	"glampstay/internal/domain/shared/money"
)

// ErrNotFound indicates that a requested booking, commission or audit trail does not exist.
var ErrNotFound = errors.New("not found")

// ErrConcurrentModification indicates a write conditioned on a stale version or state.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrAuthorizationDenied indicates the actor may not perform the requested change.
var ErrAuthorizationDenied = errors.New("authorization denied")

// ErrInvalidInput indicates a malformed request that never reached the state machine.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidTransition indicates a status change outside the allowed table.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrOverpayment indicates a payment that would push amountPaid above the total.
var ErrOverpayment = errors.New("overpayment")

// ErrRequestInProgress is returned when the same idempotency key is still being processed.
var ErrRequestInProgress = errors.New("request with the same idempotency key is in progress")

// ErrInternal marks wiring and programming failures. Clients only ever see a generic message.
var ErrInternal = errors.New("internal error")

// Codes reported to API clients.
const (
	CodeNotFound               = "NotFound"
	CodeConcurrentModification = "ConcurrentModification"
	CodeAuthorizationDenied    = "AuthorizationDenied"
	CodeInvalidInput           = "InvalidInput"
	CodeInvalidTransition      = "InvalidTransition"
	CodeOverpayment            = "OverpaymentError"
	CodeNegativeAmount         = "NegativeAmount"
	CodeCurrencyMismatch       = "CurrencyMismatch"
	CodeRequestInProgress      = "RequestInProgress"
	CodeInternal               = "Internal"
)

// Code classifies err into the settlement error taxonomy. Anything unknown is
// treated as an internal failure.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConcurrentModification):
		return CodeConcurrentModification
	case errors.Is(err, ErrAuthorizationDenied):
		return CodeAuthorizationDenied
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrOverpayment):
		return CodeOverpayment
	case errors.Is(err, money.ErrNegativeAmount):
		return CodeNegativeAmount
	case errors.Is(err, money.ErrCurrencyMismatch):
		return CodeCurrencyMismatch
	case errors.Is(err, ErrRequestInProgress):
		return CodeRequestInProgress
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrInvalidWireFormat),
		errors.Is(err, money.ErrInvalidRate),
		errors.Is(err, money.ErrOutOfRange):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// IsRecoverable reports whether err is an expected, typed rejection rather
// than a storage or programming failure.
func IsRecoverable(err error) bool {
	return Code(err) != CodeInternal
}
