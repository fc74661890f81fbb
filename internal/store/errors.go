package store

import (
	"github.com/cockroachdb/errors"

	"github.com/giantswarm/resallocd/internal/sentinel"
)

// ErrNotFound is returned by lookups of a specific row (by id) that find
// nothing. Matchable through a wrapped StoreError via errors.Is.
const ErrNotFound = sentinel.Error("store: not found")

// ErrConflict is returned when a mutation observes a concurrent change it
// did not expect (e.g. a resource already bound to another ticket).
const ErrConflict = sentinel.Error("store: conflict")

// StoreError wraps any failure from the underlying SQL driver or from an
// invariant check performed on query results. It is the single error type
// Store methods return, per spec.md §4.1 and §7 ("any Store operation fails
// with StoreError; the caller aborts the current tick/worker iteration").
//
// cockroachdb/errors is used instead of the standard library's errors.New
// so a StoreError retains a stack trace at the point it was constructed —
// the original driver error is rarely enough context on its own to diagnose
// a transaction failure days later in a log file.
type StoreError struct {
	Op  string
	err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.err.Error()
}

func (e *StoreError) Unwrap() error { return e.err }

// wrap builds a StoreError for operation op, or returns nil if err is nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, err: errors.Wrap(err, op)}
}
