// Package users manages staff accounts. Cashiers are created by admins with
// a generated temporary password they must change on first login.
package users

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("users: user not found")
	ErrEmailTaken  = errors.New("users: email already registered")
	ErrHasPayments = errors.New("users: payment records reference this user")
	ErrNotCashier  = errors.New("users: user is not a cashier")
)

// User represents a staff account.
type User struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	Active             bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CashierSummary is a cashier with lifetime collection totals.
type CashierSummary struct {
	User
	PaymentCount   int     `json:"payment_count"`
	TotalCollected float64 `json:"total_collected"`
}
