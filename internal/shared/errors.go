package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPeriod indicates a malformed or impossible period.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidStatusTransition indicates a status change not allowed.
	ErrInvalidStatusTransition = errors.New("status transition invalid")
)
