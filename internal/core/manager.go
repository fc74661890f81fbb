package core

import (
	"context"
	"time"

	"github.com/giantswarm/resallocd/internal/store"
)

// Manager runs the top-level tick loop of spec.md §4.6: reload pool configs,
// run every Pool Controller, run ticket assignment, then wait on the shared
// Event with a sleeptime timeout. Grounded on the teacher's top-level
// manager loop (internal/core/manager.go in giantswarm-k8senv, since removed
// but the reload-then-tick-then-wait shape carries forward).
type Manager struct {
	Store    *store.Store
	LogDir   string
	Config   ConfigProvider
	Event    *Event
	Ready    *ResourceReady
	SleepFor time.Duration
}

// Run loops until ctx is cancelled.
func (m Manager) Run(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		m.tick(ctx)

		m.Event.Wait(ctx, m.SleepFor)
	}
}

func (m Manager) tick(ctx context.Context) {
	pools := m.Config()
	controller := PoolController{Store: m.Store, LogDir: m.LogDir, Event: m.Event}

	for _, cfg := range pools {
		if err := controller.Tick(ctx, cfg); err != nil {
			Logger().Error("manager: pool tick failed", "pool", cfg.ID, "error", err)
		}
	}

	bindings, err := AssignTickets(ctx, m.Store)
	if err != nil {
		Logger().Error("manager: ticket assignment failed", "error", err)
		return
	}
	for _, b := range bindings {
		m.Ready.Notify(b.TID, b.ResourceID)
	}
}
