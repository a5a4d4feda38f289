package models

import "time"

type Member struct {
	ID          string
	Name        string
	Email       string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortField is a member column the list endpoint may order by.
type SortField string

const (
	SortByName        SortField = "name"
	SortByEmail       SortField = "email"
	SortByPhoneNumber SortField = "phoneNumber"
)

// PageRequest describes one page of an ordered member listing.
type PageRequest struct {
	Page      int
	Size      int
	SortBy    SortField
	Ascending bool
}

// Page is a slice of members plus paging totals.
type Page struct {
	Content       []Member
	Page          int
	Size          int
	TotalElements int64
}

// TotalPages is ceil(TotalElements/Size).
func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

// Last reports whether this is the final page.
func (p *Page) Last() bool {
	return p.Page+1 >= p.TotalPages()
}
