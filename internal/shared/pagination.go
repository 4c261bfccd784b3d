package shared

import "math"

// DefaultPerPage is used when a listing does not specify a page size.
const DefaultPerPage = 10

// Pagination carries metadata for paginated listings. One instance is shared
// by every list-returning query in the application.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// NewPagination computes pagination metadata, clamping page into range.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    page > 1 && total > 0,
		HasNext:    page < totalPages && total > 0,
	}
}

// Offset returns the SQL offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageNumbers returns the page numbers a pager should display. Zero marks a
// gap between the edge windows and the window around the current page.
func (p Pagination) PageNumbers(edge, around int) []int {
	if p.TotalPages <= 1 {
		return nil
	}
	var nums []int
	lastShown := 0
	for n := 1; n <= p.TotalPages; n++ {
		show := n <= edge || n > p.TotalPages-edge ||
			(n >= p.Page-around && n <= p.Page+around)
		if !show {
			continue
		}
		if lastShown != 0 && n-lastShown > 1 {
			nums = append(nums, 0)
		}
		nums = append(nums, n)
		lastShown = n
	}
	return nums
}
