package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/store/query"
)

// now is a seam so tests can fake the clock without monkey-patching time.Now.
var now = func() int64 { return time.Now().Unix() }

// AllocateIDInPool returns the lowest non-negative integer not currently
// assigned to a live resource in the pool, per spec.md §4.1 (ported from
// resallocserver/manager.py:_allocate_pool_id). Must be called within the
// same transaction that inserts the corresponding id_within_pool row, or two
// concurrent allocations could pick the same slot.
func AllocateIDInPool(ctx context.Context, tx *sqlx.Tx, poolName string) (int, error) {
	rows, err := query.From[IDWithinPool]("id_within_pool").
		Where(query.Eq("pool_name", poolName)).
		OrderBy("id ASC").
		All(ctx, tx)
	if err != nil {
		return 0, wrap("allocate_id_in_pool", err)
	}
	used := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		used[r.ID] = struct{}{}
	}
	for candidate := 0; ; candidate++ {
		if _, taken := used[candidate]; !taken {
			return candidate, nil
		}
	}
}

// InsertStartingResource inserts a new Resource row in STARTING state with
// the given pool and name. Returns the assigned resource id.
func InsertStartingResource(ctx context.Context, tx *sqlx.Tx, pool, name string) (int64, error) {
	id, err := query.InsertInto("resource").
		Set("pool", pool).
		Set("name", name).
		Set("state", string(StateStarting)).
		Set("check_last_time", int64(0)).
		Set("check_failed_count", 0).
		Set("releases_counter", 0).
		ExecTx(ctx, tx)
	return id, wrap("insert_starting_resource", err)
}

// InsertIDWithinPool reserves the given slot number for the resource.
func InsertIDWithinPool(ctx context.Context, tx *sqlx.Tx, poolName string, id int, resourceID int64) error {
	_, err := query.InsertInto("id_within_pool").
		Set("pool_name", poolName).
		Set("id", id).
		Set("resource_id", resourceID).
		ExecTx(ctx, tx)
	return wrap("insert_id_within_pool", err)
}

// DeleteIDWithinPoolByResource frees the slot owned by resourceID, called
// whenever a resource reaches ENDED.
func DeleteIDWithinPoolByResource(ctx context.Context, tx *sqlx.Tx, resourceID int64) error {
	_, err := query.DeleteFrom("id_within_pool").Where(query.Eq("resource_id", resourceID)).ExecTx(ctx, tx)
	return wrap("delete_id_within_pool", err)
}

// InsertResourceTags attaches the pool's configured tags to a freshly
// allocated resource. Round-trip invariant: len(tags) rows are inserted with
// matching priorities.
func InsertResourceTags(ctx context.Context, tx *sqlx.Tx, resourceID int64, tags []ResourceTag) error {
	for _, t := range tags {
		if _, err := query.InsertInto("resource_tag").
			Set("resource_id", resourceID).
			Set("tag_name", t.TagName).
			Set("priority", t.Priority).
			ExecTx(ctx, tx); err != nil {
			return wrap("insert_resource_tags", err)
		}
	}
	return nil
}

// SetResourceState transitions a resource to a new state.
func SetResourceState(ctx context.Context, tx *sqlx.Tx, id int64, state ResourceState) error {
	_, err := query.UpdateTable("resource").Set("state", string(state)).Where(query.Eq("id", id)).ExecTx(ctx, tx)
	return wrap("set_resource_state", err)
}

// CompleteAlloc finishes an AllocWorker: sets the captured stdout as the
// resource's data and transitions to UP on success or ENDED on failure.
func CompleteAlloc(ctx context.Context, tx *sqlx.Tx, id int64, success bool, data []byte) error {
	state := StateUp
	if !success {
		state = StateEnded
	}
	_, err := query.UpdateTable("resource").
		Set("data", data).
		Set("state", string(state)).
		Where(query.Eq("id", id)).
		ExecTx(ctx, tx)
	return wrap("complete_alloc", err)
}

// CompleteRelease finishes a ReleaseWorker's completion transaction. Success
// increments releases_counter and stamps released_at; failure sets
// releases_counter above reuseMaxCount so the next Pool Controller tick
// forces removal, per spec.md §9's resolved open question. The now-closed
// ticket row is deleted once release completes, matching spec.md §3's
// "closed tickets persist until release completes."
func CompleteRelease(ctx context.Context, tx *sqlx.Tx, id int64, ticketID int64, success bool, reuseMaxCount int) error {
	b := query.UpdateTable("resource").Set("state", string(StateUp))
	if success {
		b = b.Set("releases_counter", query.RawExpr("releases_counter + 1")).
			Set("released_at", now())
	} else {
		b = b.Set("releases_counter", reuseMaxCount+1)
	}
	if _, err := b.Where(query.Eq("id", id)).ExecTx(ctx, tx); err != nil {
		return wrap("complete_release", err)
	}
	return DeleteTicket(ctx, tx, ticketID)
}

// ApplyImmediateRelease handles spec.md §4.4 step 1's "cmd_release is
// absent" branch: the resource stays UP and becomes immediately reusable,
// so the releases_counter/released_at bookkeeping that would otherwise wait
// for a ReleaseWorker's completion transaction happens right here instead.
func ApplyImmediateRelease(ctx context.Context, tx *sqlx.Tx, resourceID int64) error {
	_, err := query.UpdateTable("resource").
		Set("ticket", nil).
		Set("releases_counter", query.RawExpr("releases_counter + 1")).
		Set("released_at", now()).
		Where(query.Eq("id", resourceID)).
		ExecTx(ctx, tx)
	return wrap("apply_immediate_release", err)
}

// CompleteTerminate finishes a TerminateWorker: transitions ENDED and frees
// the pool-local slot.
func CompleteTerminate(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if err := SetResourceState(ctx, tx, id, StateEnded); err != nil {
		return err
	}
	return DeleteIDWithinPoolByResource(ctx, tx, id)
}

// UnbindResource clears a resource's ticket reference, used when the Pool
// Controller detects a closed ticket.
func UnbindResource(ctx context.Context, tx *sqlx.Tx, resourceID int64) error {
	_, err := query.UpdateTable("resource").Set("ticket", nil).Where(query.Eq("id", resourceID)).ExecTx(ctx, tx)
	return wrap("unbind_resource", err)
}

// BindTicket binds a ticket to a resource both ways and, if the resource had
// no sandbox yet, stamps it from the ticket (sandbox lock-in, spec.md §4.7).
// Both sides of the bind are guarded by the unbound condition AssignTickets
// observed when it picked this pair: if either row changed between candidate
// selection and this transaction — another tick already bound the ticket or
// claimed the resource — zero rows match and ErrConflict is returned instead
// of silently double-binding.
func BindTicket(ctx context.Context, tx *sqlx.Tx, ticketID, resourceID int64, resourceSandbox *string, ticketSandbox *string) error {
	n, err := query.UpdateTable("ticket").
		Set("resource_id", resourceID).
		Where(query.And(query.Eq("id", ticketID), query.IsNull("resource_id"))).
		ExecTx(ctx, tx)
	if err != nil {
		return wrap("bind_ticket", err)
	}
	if n == 0 {
		return wrap("bind_ticket", ErrConflict)
	}

	b := query.UpdateTable("resource").Set("ticket", ticketID)
	if resourceSandbox == nil && ticketSandbox != nil {
		b = b.Set("sandbox", *ticketSandbox).Set("sandboxed_since", now())
	}
	n, err = b.Where(query.And(query.Eq("id", resourceID), query.IsNull("ticket"))).ExecTx(ctx, tx)
	if err != nil {
		return wrap("bind_ticket: resource", err)
	}
	if n == 0 {
		return wrap("bind_ticket: resource", ErrConflict)
	}
	return nil
}

// SetResourceName renames a resource, used once allocateMore has learned the
// monotonic resource id that {id} expands to in its configured name_pattern.
func SetResourceName(ctx context.Context, tx *sqlx.Tx, id int64, name string) error {
	_, err := query.UpdateTable("resource").Set("name", name).Where(query.Eq("id", id)).ExecTx(ctx, tx)
	return wrap("set_resource_name", err)
}

// InsertTicket admits a new ticket in OPEN state.
func InsertTicket(ctx context.Context, tx *sqlx.Tx, tagSet string, sandbox *string, tid *string) (int64, error) {
	id, err := query.InsertInto("ticket").
		Set("state", string(TicketOpen)).
		Set("tag_set", tagSet).
		Set("sandbox", sandbox).
		Set("tid", tid).
		ExecTx(ctx, tx)
	return id, wrap("insert_ticket", err)
}

// CloseTicket marks a ticket CLOSED; it persists until its bound resource
// finishes releasing, per spec.md §3.
func CloseTicket(ctx context.Context, tx *sqlx.Tx, ticketID int64) error {
	_, err := query.UpdateTable("ticket").Set("state", string(TicketClosed)).Where(query.Eq("id", ticketID)).ExecTx(ctx, tx)
	return wrap("close_ticket", err)
}

// DeleteTicket removes a ticket row once its resource binding has been
// fully released and it is no longer needed.
func DeleteTicket(ctx context.Context, tx *sqlx.Tx, ticketID int64) error {
	_, err := query.DeleteFrom("ticket").Where(query.Eq("id", ticketID)).ExecTx(ctx, tx)
	return wrap("delete_ticket", err)
}

// SetPoolLastStart stamps a pool's last_start time (the allocation loop's
// start_delay throttle reads this).
func SetPoolLastStart(ctx context.Context, tx *sqlx.Tx, poolID string, at int64) error {
	_, err := query.UpdateTable("pool_state").Set("last_start", at).Where(query.Eq("id", poolID)).ExecTx(ctx, tx)
	return wrap("set_pool_last_start", err)
}

// SetPoolCleaningUnknownResources stamps the timestamp of the last
// CleanUnknownWorker dispatch for the pool. Matched by id directly against
// the current row rather than a value captured earlier in the tick, per
// spec.md §9's guidance to re-load the pool row before updating it.
func SetPoolCleaningUnknownResources(ctx context.Context, tx *sqlx.Tx, poolID string, at int64) error {
	_, err := query.UpdateTable("pool_state").
		Set("cleaning_unknown_resources", at).
		Where(query.Eq("id", poolID)).
		ExecTx(ctx, tx)
	return wrap("set_pool_cleaning_unknown_resources", err)
}

// RecordLivecheck is the Watcher's per-resource completion transaction
// (spec.md §4.5): stamps check_last_time and either resets check_failed_count
// to 0 on a successful check or increments it otherwise.
func RecordLivecheck(ctx context.Context, tx *sqlx.Tx, resourceID int64, ok bool) error {
	b := query.UpdateTable("resource").Set("check_last_time", now())
	if ok {
		b = b.Set("check_failed_count", 0)
	} else {
		b = b.Set("check_failed_count", query.RawExpr("check_failed_count + 1"))
	}
	_, err := b.Where(query.Eq("id", resourceID)).ExecTx(ctx, tx)
	return wrap("record_livecheck", err)
}

// Now returns the current Unix time through the package's clock seam.
func Now() int64 { return now() }
