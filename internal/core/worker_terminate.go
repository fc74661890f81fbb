package core

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/backoff"
	"github.com/giantswarm/resallocd/internal/hook"
	"github.com/giantswarm/resallocd/internal/store"
)

// TerminateWorker drives a DELETE_REQUEST resource through cmd_delete to
// ENDED. Multiple concurrent TerminateWorkers are tolerated — each operates
// on a distinct resource id (spec.md §4.4 step 3).
type TerminateWorker struct {
	Store      *store.Store
	LogDir     string
	Event      *Event
	Pool       PoolConfig
	ResourceID int64
}

// Run executes spec.md §4.3's TerminateWorker steps.
func (w TerminateWorker) Run(ctx context.Context) {
	defer w.Event.Set()

	res, err := w.Store.GetResource(ctx, w.ResourceID)
	if err != nil {
		Logger().Error("terminate: snapshot failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}
	if res.Ticket != nil {
		t, err := w.Store.GetTicket(ctx, *res.Ticket)
		if err == nil && t.State == store.TicketOpen {
			Logger().Warn("terminate: resource has an open ticket bound, aborting", "pool", w.Pool.ID, "resource", w.ResourceID)
			return
		}
	}

	if err := w.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.SetResourceState(ctx, tx, w.ResourceID, store.StateDeleting)
	}); err != nil {
		Logger().Error("terminate: transition to deleting failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}

	var idInPool *int
	if id, ok, err := w.Store.GetIDWithinPoolForResource(ctx, w.ResourceID); err == nil && ok {
		idInPool = &id
	}

	if w.Pool.CmdDelete != "" {
		result, err := hook.Run(ctx, hook.Options{
			LogDir:     w.LogDir,
			ResourceID: w.ResourceID,
			Kind:       hook.KindTerminate,
			Command:    w.Pool.CmdDelete,
			Env: hook.Env{
				ID:       res.ID,
				Name:     res.Name,
				PoolID:   w.Pool.ID,
				IDInPool: idInPool,
				Data:     decodeData(w.Pool, res.Data),
			},
		})
		if err != nil {
			Logger().Error("terminate: hook failed to run", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
			return
		}
		if result.Status != 0 {
			Logger().Warn("terminate: cmd_delete exited non-zero, ending resource anyway", "pool", w.Pool.ID, "resource", w.ResourceID, "status", result.Status)
		}
	}

	if err := backoff.Retry(ctx, backoff.Default, func() error {
		return w.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.CompleteTerminate(ctx, tx, w.ResourceID)
		})
	}); err != nil {
		Logger().Error("terminate: commit failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
	}
}
