package users

// CreateCashierRequest is the payload for adding a cashier account.
type CreateCashierRequest struct {
	Name  string `json:"name" validate:"required,max=150"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// UpdateCashierRequest edits a cashier. Nil fields are left unchanged.
type UpdateCashierRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=150"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

// CashierCredentials carries the one-time plaintext password. It is returned
// exactly once, on creation or reset, and never stored.
type CashierCredentials struct {
	User              User   `json:"user"`
	TemporaryPassword string `json:"temporary_password"`
}
