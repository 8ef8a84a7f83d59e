package shared

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Pagination is a clamped limit/offset window.
type Pagination struct {
	Limit  int
	Offset int
}

// NewPagination clamps limit and offset into the supported window.
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// PaginationFromRequest reads limit and offset query parameters.
func PaginationFromRequest(r *http.Request) Pagination {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return NewPagination(limit, offset)
}
