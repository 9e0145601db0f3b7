package repository

import "errors"

// Sentinel kinds for library errors.
var (
	ErrNotFound = errors.New("activity not found")
)
