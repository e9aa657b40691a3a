package service

import "time"

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Pagination defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies list defaults: page starts at 1, a missing or
// non-positive size becomes DefaultPageSize and sizes above MaxPageSize are capped.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
