package resallocd

import (
	"log/slog"

	"github.com/giantswarm/resallocd/internal/core"
)

// SetLogger replaces the package-level logger used by resallocd. This
// allows applications to integrate resallocd logging with their own logging
// infrastructure. The provided logger should already have any desired
// attributes; resallocd will not add additional attributes beyond
// "component".
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next log call.
//
// SetLogger is safe to call concurrently with other resallocd operations.
//
// Example:
//
//	resallocd.SetLogger(myLogger.With("component", "resallocd"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
