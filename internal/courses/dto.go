package courses

// CreateCourseRequest is the payload for adding a course.
type CreateCourseRequest struct {
	Name        string  `json:"name" validate:"required,max=150"`
	Description string  `json:"description" validate:"omitempty,max=1000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// UpdateCourseRequest edits a course. Nil fields are left unchanged.
type UpdateCourseRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=150"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
}

// ListCoursesRequest filters the course listing.
type ListCoursesRequest struct {
	Search  string
	Active  *bool
	Page    int
	PerPage int
}
