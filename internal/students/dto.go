package students

import "github.com/campuspay/campuspay/internal/ledger"

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Address   string `json:"address" validate:"omitempty,max=500"`
	CourseID  *int64 `json:"course_id" validate:"omitempty,gt=0"`
}

// UpdateStudentRequest is the payload for editing a student. Nil fields are
// left unchanged.
type UpdateStudentRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=500"`
	CourseID  *int64  `json:"course_id" validate:"omitempty,gt=0"`
}

// ListStudentsRequest filters the student listing.
type ListStudentsRequest struct {
	Search        string
	CourseID      *int64
	Active        *bool
	PaymentStatus ledger.BillingStatus
	Page          int
	PerPage       int
}
