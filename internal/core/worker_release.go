package core

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/backoff"
	"github.com/giantswarm/resallocd/internal/hook"
	"github.com/giantswarm/resallocd/internal/store"
)

// ReleaseWorker drives a resource the Pool Controller has already
// transitioned to RELEASING (ticket unbound) through cmd_release. Precondition
// per spec.md §4.3: the resource was UP-taken, its ticket CLOSED, and the
// Pool Controller has already set state = RELEASING and cleared the binding.
type ReleaseWorker struct {
	Store      *store.Store
	LogDir     string
	Event      *Event
	Pool       PoolConfig
	ResourceID int64
	TicketID   int64
}

// Run executes spec.md §4.3's ReleaseWorker steps, including the resolved
// open question from spec.md §9: success increments releases_counter and
// stamps released_at in the same completion transaction; failure sets
// releases_counter above reuse_max_count to force removal on the next Pool
// Controller pass.
func (w ReleaseWorker) Run(ctx context.Context) {
	res, err := w.Store.GetResource(ctx, w.ResourceID)
	if err != nil {
		Logger().Error("release: snapshot failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}
	var idInPool *int
	if id, ok, err := w.Store.GetIDWithinPoolForResource(ctx, w.ResourceID); err == nil && ok {
		idInPool = &id
	}

	result, err := hook.Run(ctx, hook.Options{
		LogDir:     w.LogDir,
		ResourceID: w.ResourceID,
		Kind:       hook.KindRelease,
		Command:    w.Pool.CmdRelease,
		Env: hook.Env{
			ID:       res.ID,
			Name:     res.Name,
			PoolID:   w.Pool.ID,
			IDInPool: idInPool,
			Data:     decodeData(w.Pool, res.Data),
		},
	})
	if err != nil {
		Logger().Error("release: hook failed to run", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}

	success := result.Status == 0
	err = backoff.Retry(ctx, backoff.Default, func() error {
		return w.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.CompleteRelease(ctx, tx, w.ResourceID, w.TicketID, success, w.Pool.ReuseMaxCount)
		})
	})
	if err != nil {
		Logger().Error("release: commit failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}

	// Signal only on success: a failed release leaves the resource poisoned
	// (releases_counter forced above the cap) and the Manager should not
	// immediately re-pick it for a ticket before the next tick removes it.
	if success {
		w.Event.Set()
	} else {
		Logger().Warn("release: cmd_release failed, resource marked for removal", "pool", w.Pool.ID, "resource", w.ResourceID, "status", result.Status)
	}
}
