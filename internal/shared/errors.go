// Package shared holds the error taxonomy used across the store, the
// access evaluator and the API layer. Handlers translate these sentinels
// into HTTP statuses; everything in between passes them through unchanged.
package shared

import "errors"

var (
	// ErrNotFound : unknown or permanently purged record id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict : optimistic-concurrency failure, the submitted version
	// no longer matches the stored one. Retryable after a re-fetch.
	ErrConflict = errors.New("version conflict")

	// ErrPermission : access check failed. Not retryable without a
	// changed identity or a new grant.
	ErrPermission = errors.New("permission denied")

	// ErrValidation : a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
)
