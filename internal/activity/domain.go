// Package activity is the audit trail. Every administrative action and every
// collected payment leaves one entry here.
package activity

import "time"

// Entry is one audit trail record.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRequest filters the activity listing.
type ListRequest struct {
	Search  string
	Role    string
	UserID  *int64
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// Stats summarizes the trail for the activity page header.
type Stats struct {
	Total      int `json:"total"`
	Today      int `json:"today"`
	ThisWeek   int `json:"this_week"`
	UserCount  int `json:"user_count"`
	AdminCount int `json:"admin_count"`
}
