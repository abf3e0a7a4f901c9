// Package repository holds the MySQL persistence layer and the shared
// sentinel errors handlers use to pick a status code.  ErrNotFound maps
// to 404, ErrForbidden to 403 and ErrConflict to 409 (for example a
// duplicate email or coupon code).
package repository

import (
	"database/sql"
	"errors"
	"strings"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a unique key that is already taken.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// notFound maps sql.ErrNoRows to ErrNotFound and leaves other errors
// untouched.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isDuplicate reports a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
