package core

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/store"
)

func waitNoSlot(t *testing.T, s *store.Store, id int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, err := s.GetIDWithinPoolForResource(context.Background(), id); err == nil && !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("resource %d still holds a slot after its deadline", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolController_DetectClosedTickets_ImmediateReleaseWhenNoCmdRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := startingResource(t, s, "pool-a", "r0")
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.CompleteAlloc(ctx, tx, id, true, nil)
	})
	var ticketID int64
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ticketID, err = store.InsertTicket(ctx, tx, "", nil, nil)
		if err != nil {
			return err
		}
		if err := store.BindTicket(ctx, tx, ticketID, id, nil, nil); err != nil {
			return err
		}
		return store.CloseTicket(ctx, tx, ticketID)
	})

	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.detectClosedTickets(ctx, PoolConfig{ID: "pool-a"}); err != nil {
		t.Fatalf("detectClosedTickets: %v", err)
	}

	res, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res.State != store.StateUp || res.Ticket != nil {
		t.Fatalf("res = %+v, want UP and unbound (immediate release with no cmd_release)", res)
	}
	if _, err := s.GetTicket(ctx, ticketID); err == nil {
		t.Fatal("ticket should have been deleted by the immediate-release path")
	}
}

func TestPoolController_DetectClosedTickets_DispatchesReleaseWorkerWhenConfigured(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := startingResource(t, s, "pool-a", "r0")
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.CompleteAlloc(ctx, tx, id, true, nil)
	})
	var ticketID int64
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ticketID, err = store.InsertTicket(ctx, tx, "", nil, nil)
		if err != nil {
			return err
		}
		if err := store.BindTicket(ctx, tx, ticketID, id, nil, nil); err != nil {
			return err
		}
		return store.CloseTicket(ctx, tx, ticketID)
	})

	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.detectClosedTickets(ctx, PoolConfig{ID: "pool-a", CmdRelease: "true"}); err != nil {
		t.Fatalf("detectClosedTickets: %v", err)
	}

	res := waitResourceState(t, s, id, store.StateUp)
	if res.ReleasesCounter != 1 {
		t.Fatalf("ReleasesCounter = %d, want 1 once the dispatched ReleaseWorker finishes", res.ReleasesCounter)
	}
}

func TestPoolController_RequestRemoval_CheckFailureThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := startingResource(t, s, "pool-a", "r0")
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.CompleteAlloc(ctx, tx, id, true, nil)
	})
	for i := 0; i < 3; i++ {
		_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
			return store.RecordLivecheck(ctx, tx, id, false)
		})
	}

	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.requestRemoval(ctx, PoolConfig{ID: "pool-a"}); err != nil {
		t.Fatalf("requestRemoval: %v", err)
	}

	res, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res.State != store.StateDeleteRequest {
		t.Fatalf("state = %s, want DELETE_REQUEST after 3 consecutive check failures", res.State)
	}
}

func TestPoolController_RequestRemoval_BelowThresholdLeftAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := startingResource(t, s, "pool-a", "r0")
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.CompleteAlloc(ctx, tx, id, true, nil)
	})
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.RecordLivecheck(ctx, tx, id, false)
	})

	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.requestRemoval(ctx, PoolConfig{ID: "pool-a"}); err != nil {
		t.Fatalf("requestRemoval: %v", err)
	}

	res, err := s.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res.State != store.StateUp {
		t.Fatalf("state = %s, want UP unchanged below the 3-failure threshold", res.State)
	}
}

func TestPoolController_GarbageCollect_TerminatesPendingResources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := startingResource(t, s, "pool-a", "r0")
	_ = s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := store.CompleteAlloc(ctx, tx, id, true, nil); err != nil {
			return err
		}
		return store.SetResourceState(ctx, tx, id, store.StateDeleteRequest)
	})

	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.garbageCollect(ctx, PoolConfig{ID: "pool-a", CmdDelete: "true"}); err != nil {
		t.Fatalf("garbageCollect: %v", err)
	}

	waitResourceState(t, s, id, store.StateEnded)
	waitNoSlot(t, s, id)
}

func TestPoolController_AllocateMore_StopsAtMax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	cfg := PoolConfig{ID: "pool-a", Max: 1, MaxPrealloc: 5, MaxStarting: 5, CmdNew: "true"}

	if err := c.allocateMore(ctx, cfg); err != nil {
		t.Fatalf("allocateMore (1st): %v", err)
	}
	stats, err := s.Stats(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.On != 1 {
		t.Fatalf("On = %d, want exactly 1 (Max)", stats.On)
	}

	if err := c.allocateMore(ctx, cfg); err != nil {
		t.Fatalf("allocateMore (2nd): %v", err)
	}
	stats, err = s.Stats(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.On != 1 {
		t.Fatalf("On = %d, want still 1 — a second call must not exceed Max", stats.On)
	}
}

func TestPoolController_AllocateMore_StopsAtMaxPrealloc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	cfg := PoolConfig{ID: "pool-a", Max: 10, MaxPrealloc: 2, MaxStarting: 10, CmdNew: "true"}

	if err := c.allocateMore(ctx, cfg); err != nil {
		t.Fatalf("allocateMore: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stats, err := s.Stats(ctx, "pool-a")
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Free+stats.Start >= cfg.MaxPrealloc {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never reached max_prealloc, stats=%+v", stats)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.allocateMore(ctx, cfg); err != nil {
		t.Fatalf("allocateMore (2nd): %v", err)
	}
	stats, err := s.Stats(ctx, "pool-a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.On > cfg.MaxPrealloc {
		t.Fatalf("On = %d, want capped at max_prealloc(%d)", stats.On, cfg.MaxPrealloc)
	}
}

func TestPoolController_UnknownCleanup_SkipsWithoutCmdList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	if err := c.unknownCleanup(ctx, PoolConfig{ID: "pool-a"}); err != nil {
		t.Fatalf("unknownCleanup: %v", err)
	}
	poolState, err := s.GetPoolState(ctx, "pool-a")
	if err != nil {
		t.Fatalf("GetPoolState: %v", err)
	}
	if poolState.CleaningUnknownResources != nil {
		t.Fatal("cleaning_unknown_resources should stay unset when cmd_list is empty")
	}
}

func TestPoolController_UnknownCleanup_GatesOnInterval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := PoolController{Store: s, LogDir: t.TempDir(), Event: NewEvent()}
	cfg := PoolConfig{ID: "pool-a", CmdList: "true"}

	if err := c.unknownCleanup(ctx, cfg); err != nil {
		t.Fatalf("unknownCleanup (1st): %v", err)
	}
	first, err := s.GetPoolState(ctx, "pool-a")
	if err != nil || first.CleaningUnknownResources == nil {
		t.Fatalf("first cleaning_unknown_resources not stamped: %+v, %v", first, err)
	}

	if err := c.unknownCleanup(ctx, cfg); err != nil {
		t.Fatalf("unknownCleanup (2nd): %v", err)
	}
	second, err := s.GetPoolState(ctx, "pool-a")
	if err != nil {
		t.Fatalf("GetPoolState: %v", err)
	}
	if *second.CleaningUnknownResources != *first.CleaningUnknownResources {
		t.Fatal("a second unknownCleanup within the 30-minute window must not re-stamp the timestamp")
	}
}
