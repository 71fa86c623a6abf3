package model

import "errors"

// Sentinel error kinds shared across the engine. Callers use errors.Is.
var (
	// ErrMalformedPosting marks a posting with missing required fields. It is
	// never fatal; extraction degrades instead.
	ErrMalformedPosting = errors.New("malformed posting")
	// ErrNotFound is returned when a fingerprint is unknown to the store.
	ErrNotFound = errors.New("posting not found")
	// ErrStorageUnavailable wraps persistence failures. The operation was
	// aborted and nothing was committed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidVerdict  = errors.New("invalid verdict")
	ErrInvalidCategory = errors.New("invalid category")
)
