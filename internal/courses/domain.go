// Package courses manages the course catalogue. A course's price is the
// default amount due for its students when no billing record exists.
package courses

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("courses: course not found")
	ErrNameTaken         = errors.New("courses: course name already exists")
	ErrHasActiveStudents = errors.New("courses: active students are enrolled in this course")
	ErrInUse             = errors.New("courses: course is referenced by student or payment records")
	ErrInvalidPrice      = errors.New("courses: price must not be negative")
)

// Course is a programme students enroll in.
type Course struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseSummary is a course with enrollment counts for list views.
type CourseSummary struct {
	Course
	StudentCount       int `json:"student_count"`
	ActiveStudentCount int `json:"active_student_count"`
}
