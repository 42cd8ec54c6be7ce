// Package repository implements the persistence layer over MySQL.  It
// defines error types that are reused across multiple repositories.
// These sentinel values allow higher layers such as the booking and
// signature services to distinguish between different failure
// scenarios. For example, ErrNotFound indicates that the requested
// record does not exist, while ErrConflict signals that an atomic
// conditional update lost a race because the row no longer carried the
// expected field values.
package repository

import "errors"

// ErrNotFound is returned when a booking, vendor, service or user
// lookup matches no row. Handlers should translate this into an
// HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update affected no rows
// because the record's current state differed from the expected state,
// or when an insert violated a uniqueness constraint (e.g. a second
// signature for the same booking). Handlers should translate this into
// an HTTP 409 response; sweep callers treat it as "somebody else won
// the race" and move on.
var ErrConflict = errors.New("conflict")
