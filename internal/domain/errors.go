package domain

import "errors"

// Store error taxonomy. Backends wrap these, callers test with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnavailable  = errors.New("store unavailable")
	ErrValidation   = errors.New("validation failed")
)
