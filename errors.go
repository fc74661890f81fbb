package resallocd

import (
	"github.com/giantswarm/resallocd/internal/store"
)

// Sentinel errors for error inspection with errors.Is, re-exported from
// internal/store so callers never need to import an internal package.
const (
	// ErrNotFound is returned when a lookup (ticket or resource) by id finds
	// nothing.
	ErrNotFound = store.ErrNotFound

	// ErrConflict is returned when a mutation observes a concurrent change
	// it did not expect.
	ErrConflict = store.ErrConflict
)
