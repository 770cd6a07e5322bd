package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrNotFound = errors.New("player rating not found")
)
