// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Access-control errors. Services return these as typed results; the
// transport layer translates them into user-facing replies.
var (
	ErrNotAuthorized       = errors.New("caller is not an authorized admin")
	ErrTargetNotFound      = errors.New("approval target not found")
	ErrDeviceLimitReached  = errors.New("device limit reached")
	ErrNotApproved         = errors.New("student not approved")
	ErrDeviceNotRegistered = errors.New("device not registered")
	ErrContentNotFound     = errors.New("content not found")

	// ErrStudentNotFound is the repository-level "no rows" result. It is
	// distinct from ErrStoreUnavailable: record absence must never be
	// conflated with a store outage.
	ErrStudentNotFound  = errors.New("student record not found")
	ErrStoreUnavailable = errors.New("record store unavailable")

	// Admin API errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
