package core

import (
	"context"
	"sync"
)

// ResourceReady is the resource_ready condition variable of spec.md §5: "a
// separate condition variable shared with the client-facing layer: the
// Manager stores the newly assigned waiter identifier and broadcasts;
// waiters filter on identifier." Implemented with sync.Cond, matching the
// source's threading.Condition 1:1 (unlike Event, this needs a genuine
// broadcast-to-many-waiters primitive, which a channel can't express without
// being closed-and-replaced on every notification).
type ResourceReady struct {
	mu      sync.Mutex
	cond    *sync.Cond
	assigned map[string]int64 // tid -> bound resource id, latched until consumed
	gen     uint64
}

// NewResourceReady returns an empty ResourceReady.
func NewResourceReady() *ResourceReady {
	r := &ResourceReady{assigned: make(map[string]int64)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Notify records that tid was bound to resourceID and wakes every Wait
// call, which then filter on their own tid. Called by ticket assignment
// after the binding transaction commits (spec.md §4.7: "notify that waiter
// after the transaction commits").
func (r *ResourceReady) Notify(tid string, resourceID int64) {
	r.mu.Lock()
	r.assigned[tid] = resourceID
	r.gen++
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Wait blocks until tid has been assigned a resource or ctx is canceled,
// returning the bound resource id. A goroutine is spawned to translate
// ctx.Done() into a Broadcast, since sync.Cond has no native context
// support.
func (r *ResourceReady) Wait(ctx context.Context, tid string) (int64, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-stop:
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if id, ok := r.assigned[tid]; ok {
			delete(r.assigned, tid)
			return id, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		r.cond.Wait()
	}
}
