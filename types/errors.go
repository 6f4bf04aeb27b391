package types

import "errors"

var (
	// ErrNotFound is returned when an operation references a photo or group that does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed arguments or state transitions that are not allowed
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps failures of the underlying persistence layer
	ErrStorage = errors.New("storage failure")
)
