// Package errors consolidates sentinel error definitions for the wavebuf daemon.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidMaxSpan   = errors.New("max span outside (0, 1200] seconds")
	ErrInvalidMerge     = errors.New("unsupported merge method")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidChannelID = errors.New("invalid channel id")
	ErrInvalidRate      = errors.New("invalid sample rate")

	// Append errors
	ErrChannelMismatch = errors.New("segment channel does not match buffer channel")
	ErrRateMismatch    = errors.New("segment sample rate does not match buffer sample rate")
	ErrStaleAppend     = errors.New("segment predates buffer window")
	ErrEmptySegment    = errors.New("segment has no samples")

	// State errors
	ErrInvalidShift   = errors.New("cannot rewind buffer window")
	ErrEmptyBuffer    = errors.New("buffer is empty")
	ErrNotRunning     = errors.New("service is not running")
	ErrAlreadyRunning = errors.New("service is already running")

	// Storage/transport errors
	ErrWriterClosed    = errors.New("writer is closed")
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	ErrTruncated       = errors.New("message truncated")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsValidation returns true if err is a configuration/validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidMaxSpan) ||
		errors.Is(err, ErrInvalidMerge) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidChannelID) ||
		errors.Is(err, ErrInvalidRate)
}

// IsRejectedAppend returns true if err means an append was refused while
// leaving the buffer untouched. Callers should log and drop the segment.
func IsRejectedAppend(err error) bool {
	return errors.Is(err, ErrStaleAppend) ||
		errors.Is(err, ErrChannelMismatch) ||
		errors.Is(err, ErrRateMismatch) ||
		errors.Is(err, ErrEmptySegment)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}
