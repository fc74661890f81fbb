// Package core implements the control core: the resource state machine, the
// pool control loop, ticket matching, and the concurrency between them.
// Grounded on the teacher's atomic-state-machine and errgroup-fan-out idioms
// (internal/core/instance.go, pool.go in giantswarm-k8senv), generalized
// from a single bounded worker pool of long-lived subprocesses to the
// broker's multi-pool, multi-state resource model.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/resallocd/internal/store"
)

// PoolController runs one pool's five-step tick, exactly in the order
// spec.md §4.4 lists.
type PoolController struct {
	Store  *store.Store
	LogDir string
	Event  *Event
}

// Tick runs the five steps for a single pool.
func (c PoolController) Tick(ctx context.Context, cfg PoolConfig) error {
	if err := c.detectClosedTickets(ctx, cfg); err != nil {
		return fmt.Errorf("pool %s: detect closed tickets: %w", cfg.ID, err)
	}
	if err := c.requestRemoval(ctx, cfg); err != nil {
		return fmt.Errorf("pool %s: request removal: %w", cfg.ID, err)
	}
	if err := c.garbageCollect(ctx, cfg); err != nil {
		return fmt.Errorf("pool %s: garbage collect: %w", cfg.ID, err)
	}
	if err := c.allocateMore(ctx, cfg); err != nil {
		return fmt.Errorf("pool %s: allocate more: %w", cfg.ID, err)
	}
	if err := c.unknownCleanup(ctx, cfg); err != nil {
		return fmt.Errorf("pool %s: unknown cleanup: %w", cfg.ID, err)
	}
	return nil
}

// detectClosedTickets is step 1.
func (c PoolController) detectClosedTickets(ctx context.Context, cfg PoolConfig) error {
	taken, err := c.Store.Taken(ctx, cfg.ID)
	if err != nil {
		return err
	}
	for _, r := range taken {
		if r.Ticket == nil {
			continue
		}
		t, err := c.Store.GetTicket(ctx, *r.Ticket)
		if err != nil {
			return err
		}
		if t.State != store.TicketClosed {
			continue
		}

		if cfg.CmdRelease == "" {
			if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
				return store.ApplyImmediateRelease(ctx, tx, r.ID)
			}); err != nil {
				return err
			}
			if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
				return store.DeleteTicket(ctx, tx, t.ID)
			}); err != nil {
				return err
			}
			c.Event.Set()
			continue
		}

		if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := store.UnbindResource(ctx, tx, r.ID); err != nil {
				return err
			}
			return store.SetResourceState(ctx, tx, r.ID, store.StateReleasing)
		}); err != nil {
			return err
		}

		worker := ReleaseWorker{Store: c.Store, LogDir: c.LogDir, Event: c.Event, Pool: cfg, ResourceID: r.ID, TicketID: t.ID}
		go worker.Run(ctx)
	}
	return nil
}

// requestRemoval is step 2: check-failure driven removal, then reuse-policy
// driven removal.
func (c PoolController) requestRemoval(ctx context.Context, cfg PoolConfig) error {
	failing, err := c.Store.CheckFailureCandidates(ctx, cfg.ID)
	if err != nil {
		return err
	}
	for _, r := range failing {
		if r.CheckFailedCount < 3 {
			continue
		}
		if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.SetResourceState(ctx, tx, r.ID, store.StateDeleteRequest)
		}); err != nil {
			return err
		}
	}

	clean, err := c.Store.CleanCandidates(ctx, cfg.ID)
	if err != nil {
		return err
	}
	now := store.Now()
	for _, r := range clean {
		if !shouldReclaim(cfg, r, now) {
			continue
		}
		if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.SetResourceState(ctx, tx, r.ID, store.StateDeleteRequest)
		}); err != nil {
			return err
		}
	}
	return nil
}

// shouldReclaim applies spec.md §4.4 step 2's reuse policy rules in order,
// returning on the first matching rule.
func shouldReclaim(cfg PoolConfig, r store.Resource, now int64) bool {
	if cfg.ReuseOpportunityTime == 0 {
		return true
	}
	if r.ReleasedAt != nil && *r.ReleasedAt < now-int64(cfg.ReuseOpportunityTime.Seconds()) {
		return true
	}
	if cfg.ReuseMaxTime > 0 && r.SandboxedSince != nil && *r.SandboxedSince < now-int64(cfg.ReuseMaxTime.Seconds()) {
		return true
	}
	if cfg.ReuseMaxCount > 0 && r.ReleasesCounter > cfg.ReuseMaxCount {
		return true
	}
	return false
}

// garbageCollect is step 3: one TerminateWorker per DELETE_REQUEST
// resource, fanned out with errgroup and no concurrency limit — multiple
// concurrent terminators are tolerated since each operates on a distinct
// resource id.
func (c PoolController) garbageCollect(ctx context.Context, cfg PoolConfig) error {
	pending, err := c.Store.Clean(ctx, cfg.ID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range pending {
		r := r
		g.Go(func() error {
			worker := TerminateWorker{Store: c.Store, LogDir: c.LogDir, Event: c.Event, Pool: cfg, ResourceID: r.ID}
			worker.Run(gctx)
			return nil
		})
	}
	return g.Wait()
}

// allocateMore is step 4.
func (c PoolController) allocateMore(ctx context.Context, cfg PoolConfig) error {
	for {
		stats, err := c.Store.Stats(ctx, cfg.ID)
		if err != nil {
			return err
		}
		poolState, err := c.Store.GetPoolState(ctx, cfg.ID)
		if err != nil {
			return err
		}
		now := store.Now()

		if stats.On >= cfg.Max {
			return nil
		}
		if stats.Free+stats.Start >= cfg.MaxPrealloc {
			return nil
		}
		if stats.Start >= cfg.MaxStarting {
			return nil
		}
		if now < poolState.LastStart+int64(cfg.StartDelay.Seconds()) {
			return nil
		}

		var resourceID int64
		if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			slot, err := store.AllocateIDInPool(ctx, tx, cfg.ID)
			if err != nil {
				return err
			}
			// name_pattern's {id} expands from the resource id, not the
			// pool-local slot: the slot gets recycled once a resource
			// reaches ENDED, so it can't be used to disambiguate names
			// across a pool's lifetime the way a monotonic id can. The
			// resource id is only known after the insert, so the row is
			// created with a placeholder name and renamed once formatted.
			resourceID, err = store.InsertStartingResource(ctx, tx, cfg.ID, "")
			if err != nil {
				return err
			}
			name := formatName(cfg.NamePattern, cfg.ID, resourceID, time.Now())
			if err := store.SetResourceName(ctx, tx, resourceID, name); err != nil {
				return err
			}
			if err := store.InsertIDWithinPool(ctx, tx, cfg.ID, slot, resourceID); err != nil {
				return err
			}
			return store.SetPoolLastStart(ctx, tx, cfg.ID, now)
		}); err != nil {
			return err
		}

		worker := AllocWorker{Store: c.Store, LogDir: c.LogDir, Event: c.Event, Pool: cfg, ResourceID: resourceID}
		go worker.Run(ctx)
	}
}

// formatName expands name_pattern's {pool_name}, {id}, {datetime}
// placeholders per spec.md §4.4. id is the resource's monotonic database id
// (resallocserver/manager.py: str(resource_id).zfill(8)), not the pool-local
// slot, which is reused after a resource reaches ENDED and would let two
// resources collide on the same formatted name over the pool's lifetime.
func formatName(pattern, poolName string, id int64, t time.Time) string {
	r := strings.NewReplacer(
		"{pool_name}", poolName,
		"{id}", fmt.Sprintf("%08d", id),
		"{datetime}", t.UTC().Format("20060102-150405"),
	)
	return r.Replace(pattern)
}

// unknownCleanupInterval is the fixed 30-minute period spec.md §4.4 step 5
// specifies between CleanUnknownWorker dispatches.
const unknownCleanupInterval = 30 * time.Minute

// unknownCleanup is step 5.
func (c PoolController) unknownCleanup(ctx context.Context, cfg PoolConfig) error {
	if cfg.CmdList == "" {
		return nil
	}
	poolState, err := c.Store.GetPoolState(ctx, cfg.ID)
	if err != nil {
		return err
	}
	last := int64(0)
	if poolState.CleaningUnknownResources != nil {
		last = *poolState.CleaningUnknownResources
	}
	now := store.Now()
	if now-last < int64(unknownCleanupInterval.Seconds()) {
		return nil
	}

	if err := c.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.SetPoolCleaningUnknownResources(ctx, tx, cfg.ID, now)
	}); err != nil {
		return err
	}

	worker := CleanUnknownWorker{Store: c.Store, LogDir: c.LogDir, Event: c.Event, Pool: cfg}
	go worker.Run(ctx)
	return nil
}
