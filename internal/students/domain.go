// Package students manages student records and enrollment state. Student
// codes are generated here; balances and payments live in the ledger.
package students

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("students: student not found")
	ErrEmailTaken = errors.New("students: email already registered")
	ErrCodeTaken  = errors.New("students: student code already taken")
)

// Student is an enrolled (or formerly enrolled) student.
type Student struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	CourseID   *int64    `json:"course_id,omitempty"`
	CourseName string    `json:"course_name,omitempty"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FullName joins first and last name for display and audit messages.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
