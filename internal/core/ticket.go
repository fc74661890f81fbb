package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/store"
)

// ReusedResourcePriority is the fixed score bonus a candidate resource
// receives when binding it would reuse a previously-sandboxed resource,
// ported directly from resallocserver/manager.py's
// REUSED_RESOURCE_PRIORITY = 500 constant (spec.md §4.7).
const ReusedResourcePriority = 500

// NewTicketID generates the opaque waiter identifier spec.md §3 calls `tid`.
// google/uuid is a natural fit: already an indirect dependency of both
// example repos in the retrieval pack, and the value only needs to be
// unique and opaque, never ordered or parsed.
func NewTicketID() string {
	return uuid.NewString()
}

// candidate is a scored resource considered for a single ticket.
type candidate struct {
	resource store.Resource
	score    int
}

// AssignTickets implements spec.md §4.7: for every OPEN, unbound ticket in
// id order, find the highest-scoring ready resource whose tags are a
// superset of the ticket's tag set and whose sandbox is compatible, and bind
// it. Runs after every Pool Controller in the tick (spec.md §5: "Ticket
// assignment runs after all Pool Controllers so that just-released
// resources are eligible in the same tick").
//
// Returns the list of (tid, resourceID) bindings made, so the caller can
// notify resource_ready waiters once each binding transaction has committed.
func AssignTickets(ctx context.Context, db *store.Store) ([]Binding, error) {
	tickets, err := db.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, nil
	}

	var bindings []Binding
	for _, t := range tickets {
		ready, err := db.Ready(ctx, "")
		if err != nil {
			return bindings, err
		}
		if len(ready) == 0 {
			continue
		}

		best, ok, err := pickCandidate(ctx, db, t, ready)
		if err != nil {
			return bindings, err
		}
		if !ok {
			continue
		}

		if err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.BindTicket(ctx, tx, t.ID, best.resource.ID, best.resource.Sandbox, t.Sandbox)
		}); err != nil {
			return bindings, err
		}

		if t.TID != nil {
			bindings = append(bindings, Binding{TID: *t.TID, ResourceID: best.resource.ID})
		}
	}
	return bindings, nil
}

// Binding is one ticket-to-resource assignment made during a tick's
// AssignTickets pass, pending resource_ready notification.
type Binding struct {
	TID        string
	ResourceID int64
}

// pickCandidate scores every ready resource against ticket t and returns the
// highest-scoring candidate. Ties are broken by lowest resource id for
// determinism — spec.md §4.7 allows any deterministic rule.
func pickCandidate(ctx context.Context, db *store.Store, t store.Ticket, ready []store.Resource) (candidate, bool, error) {
	required := store.DecodeTagSet(t.TagSet)

	var best candidate
	found := false
	for _, r := range ready {
		if r.Sandbox != nil && t.Sandbox != nil && *r.Sandbox != *t.Sandbox {
			continue
		}
		if r.Sandbox != nil && t.Sandbox == nil {
			// A sandboxed resource may only go to a ticket naming that sandbox.
			continue
		}

		tags, err := db.ResourceTagsFor(ctx, r.ID)
		if err != nil {
			return candidate{}, false, err
		}
		if !isSuperset(tags, required) {
			continue
		}

		score := scoreCandidate(tags, required, r.Sandbox != nil)
		c := candidate{resource: r, score: score}
		if !found || c.score > best.score || (c.score == best.score && c.resource.ID < best.resource.ID) {
			best = c
			found = true
		}
	}
	return best, found, nil
}

// isSuperset reports whether resource tags cover every required ticket tag.
func isSuperset(tags []store.ResourceTag, required map[string]struct{}) bool {
	have := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		have[t.TagName] = struct{}{}
	}
	for req := range required {
		if _, ok := have[req]; !ok {
			return false
		}
	}
	return true
}

// scoreCandidate sums the priority of every matching tag and adds the reuse
// bonus when the resource is already sandboxed.
func scoreCandidate(tags []store.ResourceTag, required map[string]struct{}, reused bool) int {
	score := 0
	for _, t := range tags {
		if _, ok := required[t.TagName]; ok {
			score += t.Priority
		}
	}
	if reused {
		score += ReusedResourcePriority
	}
	return score
}
