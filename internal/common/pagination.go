package common

import (
	"net/http"
	"strconv"
	"strings"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	return
}

// ParseSort reads the orderby/order query pair used by sortable list columns.
func ParseSort(r *http.Request, fallback string) (column string, desc bool) {
	q := r.URL.Query()
	column = strings.ToLower(strings.TrimSpace(q.Get("orderby")))
	if column == "" {
		column = fallback
	}
	desc = strings.EqualFold(strings.TrimSpace(q.Get("order")), "desc")
	return column, desc
}
