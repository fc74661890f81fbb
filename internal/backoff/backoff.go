// Package backoff retries a worker's completion-transaction commit against
// transient StoreErrors. It wraps cenkalti/backoff/v5, adapted from
// anyotin-valley-pkg/backoff/backoff.go (generalized from a fire-and-forget
// Exec() that only prints success/failure into one that returns the final
// error to the caller, since a worker must know whether to log a stranded
// resource).
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config bounds a retry sequence. Zero value is invalid; use Default.
type Config struct {
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxTries            uint
}

// Default is the policy used by worker completion-transaction commits:
// 3 attempts, exponential from 100ms.
var Default = Config{
	InitialInterval:     100 * time.Millisecond,
	Multiplier:          2.0,
	RandomizationFactor: 0.2,
	MaxTries:            3,
}

// Retry runs op until it returns a nil error, cfg.MaxTries is exhausted, or
// ctx is canceled. It returns the last error encountered.
func Retry(ctx context.Context, cfg Config, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.RandomizationFactor

	wrapped := func() (struct{}, error) {
		return struct{}{}, op()
	}

	_, err := backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
	)
	return err
}
