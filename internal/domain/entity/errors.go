package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrParse indicates a parser could not extract any items from a
	// successfully fetched page or feed.
	ErrParse = errors.New("parse produced no results")

	// ErrHealingFailed indicates self-heal could not produce a usable
	// selector configuration after asking the AI orchestrator.
	ErrHealingFailed = errors.New("self-heal failed to produce a usable config")

	// ErrNetwork indicates a fetch failed below the HTTP layer: DNS
	// resolution, connection refused, TLS handshake, or a timed-out round
	// trip that never produced a response.
	ErrNetwork = errors.New("network error during fetch")

	// ErrHTTPStatus indicates a fetch completed but the server returned a
	// non-2xx status code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
