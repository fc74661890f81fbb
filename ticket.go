package resallocd

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/core"
	"github.com/giantswarm/resallocd/internal/store"
)

// TicketRequest is a client's request for one resource matching a tag set
// and an optional sandbox label, per spec.md §3.
type TicketRequest struct {
	// Tags is the set of tags a bound resource must carry (a superset of
	// these, scored by configured priority — spec.md §4.7).
	Tags []string
	// Sandbox optionally pins the ticket to a specific sandbox label: a
	// resource already bound to that sandbox is preferred over an
	// unsandboxed one of equal tag score, and a resource sandboxed under a
	// different label is never a candidate.
	Sandbox *string
}

// Submit admits a new OPEN ticket. It returns the ticket's persistent id
// (pass to CloseTicket once the resource is no longer needed) and its
// opaque waiter identifier tid (pass to Wait to block until a resource is
// assigned).
func (b *Broker) Submit(ctx context.Context, req TicketRequest) (ticketID int64, tid string, err error) {
	tid = core.NewTicketID()
	tagSet := store.EncodeTagSet(req.Tags)

	err = b.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var insErr error
		ticketID, insErr = store.InsertTicket(ctx, tx, tagSet, req.Sandbox, &tid)
		return insErr
	})
	if err != nil {
		return 0, "", err
	}

	b.event.Set()
	return ticketID, tid, nil
}

// Wait blocks until the ticket identified by tid has been assigned a
// resource, returning its resource id, or until ctx is canceled.
func (b *Broker) Wait(ctx context.Context, tid string) (int64, error) {
	return b.ready.Wait(ctx, tid)
}

// CloseTicket marks a ticket CLOSED, signaling that its bound resource
// should be returned to its pool. The ticket row persists until the Pool
// Controller has driven the resource's release to completion, per
// spec.md §3.
func (b *Broker) CloseTicket(ctx context.Context, ticketID int64) error {
	err := b.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.CloseTicket(ctx, tx, ticketID)
	})
	if err != nil {
		return err
	}
	b.event.Set()
	return nil
}

// Resource returns the current state of a resource by id, for a status
// query surface in front of the broker.
func (b *Broker) Resource(ctx context.Context, resourceID int64) (store.Resource, error) {
	return b.store.GetResource(ctx, resourceID)
}
