package core

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/hook"
	"github.com/giantswarm/resallocd/internal/store"
)

// Watcher runs the independent liveness loop of spec.md §4.5: it advances
// check_last_time/check_failed_count on every UP resource whose pool has
// cmd_livecheck configured and whose check interval has elapsed. It never
// changes resource state or spawns removal — the next Pool Controller tick
// observes the updated failure count and acts on it.
type Watcher struct {
	Store    *store.Store
	LogDir   string
	Config   ConfigProvider
	SleepFor time.Duration
}

// Run loops until ctx is cancelled, sleeping sleeptime/2 between passes per
// spec.md §4.5.
func (w Watcher) Run(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		w.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.SleepFor / 2):
		}
	}
}

func (w Watcher) tick(ctx context.Context) {
	pools := w.Config()
	all, err := w.Store.Up(ctx, "")
	if err != nil {
		Logger().Error("watcher: listing UP resources failed", "error", err)
		return
	}

	now := store.Now()
	for _, r := range all {
		cfg, ok := pools[r.Pool]
		if !ok || cfg.CmdLivecheck == "" {
			continue
		}
		if r.CheckLastTime+int64(cfg.LivecheckPeriod.Seconds()) > now {
			continue
		}
		w.check(ctx, cfg, r)
	}
}

func (w Watcher) check(ctx context.Context, cfg PoolConfig, r store.Resource) {
	var idInPool *int
	if id, ok, err := w.Store.GetIDWithinPoolForResource(ctx, r.ID); err == nil && ok {
		idInPool = &id
	}

	result, err := hook.Run(ctx, hook.Options{
		LogDir:     w.LogDir,
		ResourceID: r.ID,
		Kind:       hook.KindWatch,
		Command:    cfg.CmdLivecheck,
		Env: hook.Env{
			ID:       r.ID,
			Name:     r.Name,
			PoolID:   cfg.ID,
			IDInPool: idInPool,
			Data:     decodeData(cfg, r.Data),
		},
	})
	if err != nil {
		Logger().Error("watcher: cmd_livecheck failed to run", "pool", cfg.ID, "resource", r.ID, "error", err)
		return
	}

	ok := result.Status == 0
	if err := w.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return store.RecordLivecheck(ctx, tx, r.ID, ok)
	}); err != nil {
		Logger().Error("watcher: commit failed", "pool", cfg.ID, "resource", r.ID, "error", err)
	}
}
