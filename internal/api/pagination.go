package api

import (
	"net/http"
	"strconv"
)

const defaultLimit = 50

// applyPagination reads "limit"/"offset" query params into *limit/*offset,
// defaulting limit to defaultLimit when absent or invalid and leaving
// offset at 0 when absent or invalid.
func applyPagination(r *http.Request, limit, offset *int) {
	*limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*offset = n
		}
	}
}
