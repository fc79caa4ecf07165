package api

import (
	"math"
	"net/http"
	"strconv"
)

// Page size bounds of list endpoints.
const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination extracts pagination parameters from the request.
// Invalid values fall back to page 1 and DefaultPerPage; per_page is capped
// at MaxPerPage and page so that the offset fits in 32 bits.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{
		Page:    1,
		PerPage: DefaultPerPage,
	}

	query := r.URL.Query()
	if n, ok := positiveInt(query.Get("page")); ok {
		p.Page = n
	}
	if n, ok := positiveInt(query.Get("per_page")); ok {
		p.PerPage = min(n, MaxPerPage)
	}
	p.Page = min(p.Page, math.MaxInt32/p.PerPage)

	return p
}

func positiveInt(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the number of rows of a page.
func (p PaginationParams) Limit() int {
	return p.PerPage
}

// TotalPages calculates the total number of pages for a given total count.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	return int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
}
