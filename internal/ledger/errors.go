package ledger

import "errors"

// Typed business-rule errors. The HTTP layer translates these into user
// messages; the service never swallows them.
var (
	ErrStudentNotFound  = errors.New("ledger: student not found")
	ErrStudentInactive  = errors.New("ledger: student is not active")
	ErrInvalidAmount    = errors.New("ledger: amount must be greater than zero")
	ErrInvalidMethod    = errors.New("ledger: unknown payment method")
	ErrOverpayment      = errors.New("ledger: payment would exceed the amount due")
	ErrBillingNotFound  = errors.New("ledger: billing record not found")
	ErrBillingMismatch  = errors.New("ledger: billing record does not belong to this student")
	ErrDuplicateBilling = errors.New("ledger: billing record already exists for this term")
	ErrInvalidTerm      = errors.New("ledger: invalid term")
	ErrInvalidDue       = errors.New("ledger: total due must not be negative")
)
