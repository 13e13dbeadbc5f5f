package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a versioned write lost a race with a
	// concurrent writer. Store.Update retries transactions that fail with it.
	ErrConflict = errors.New("concurrent modification")

	// ErrInvariantViolation is returned when a record about to be written
	// breaks a data invariant.
	ErrInvariantViolation = errors.New("invariant violation")
)

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
