package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}

// PageBounds returns the [start, end) slice bounds of page within total
// items. Pages past the end yield an empty range at total; the arithmetic
// never overflows, whatever page a client asks for.
func PageBounds(page, perPage, total int) (start, end int) {
	if perPage < 1 || total <= 0 {
		return 0, 0
	}
	if page < 1 {
		page = 1
	}
	if page-1 >= (total-1)/perPage+1 {
		return total, total
	}
	start = (page - 1) * perPage
	return start, start + min(perPage, total-start)
}
