package utils

import "strconv"

// Pagination defaults and limits.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// ParsePage reads page and limit query values, clamping them to valid ranges.
// Invalid or missing values fall back to defaults.
func ParsePage(pageStr, limitStr string) (page, limit int) {
	page, limit = DefaultPage, DefaultLimit
	if v, err := strconv.Atoi(pageStr); err == nil && v >= 1 {
		page = v
	}
	if v, err := strconv.Atoi(limitStr); err == nil && v >= 1 {
		limit = v
		if limit > MaxLimit {
			limit = MaxLimit
		}
	}
	return page, limit
}

// Offset returns the row offset for a 1-based page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}
