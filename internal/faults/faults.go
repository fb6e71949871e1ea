// Package faults defines the error kinds shared across the voting core.
// Callers distinguish kinds with errors.Is; the wrapped reason string
// names the exact failing check.
package faults

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrMalformedData = errors.New("malformed external data")
	ErrUnverifiable  = errors.New("unverifiable")
)

// Reject wraps a kind with a check-specific reason.
func Reject(kind error, reason string) error {
	return fmt.Errorf("%w: %s", kind, reason)
}
