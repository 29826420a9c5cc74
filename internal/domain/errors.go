package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input the cart rejects: non-positive quantities, empty ids,
	// or mutations that need an existing line.
	ErrValidation = errors.New("validation failed")
	// ErrTransientStore wraps network or service failures of a backing store. Retryable.
	ErrTransientStore = errors.New("store unavailable")
	// ErrConflict is returned when a store detects a concurrent overwrite.
	ErrConflict = errors.New("conflicting write")
)
