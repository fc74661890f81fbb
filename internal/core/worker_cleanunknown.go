package core

import (
	"bytes"
	"context"

	"github.com/giantswarm/resallocd/internal/hook"
	"github.com/giantswarm/resallocd/internal/store"
)

// cleanUnknownCaptureBytes is cmd_list's stdout capture budget, per
// spec.md §4.3.
const cleanUnknownCaptureBytes = 5120

// CleanUnknownWorker reconciles the pool's externally-visible resources
// (cmd_list) against the Store's view and deletes anything the Store no
// longer tracks. It never touches the Store itself (spec.md §4.3).
type CleanUnknownWorker struct {
	Store  *store.Store
	LogDir string
	Event  *Event
	Pool   PoolConfig
}

// Run executes spec.md §4.3's CleanUnknownWorker steps.
func (w CleanUnknownWorker) Run(ctx context.Context) {
	defer w.Event.Set()

	result, err := hook.Run(ctx, hook.Options{
		LogDir:       w.LogDir,
		ResourceID:   0,
		Kind:         hook.KindList,
		Command:      w.Pool.CmdList,
		Env:          hook.Env{PoolID: w.Pool.ID},
		CaptureBytes: cleanUnknownCaptureBytes,
		SecureLines:  true,
	})
	if err != nil {
		Logger().Error("clean_unknown: cmd_list failed to run", "pool", w.Pool.ID, "error", err)
		return
	}
	if result.Status != 0 {
		Logger().Warn("clean_unknown: cmd_list exited non-zero", "pool", w.Pool.ID, "status", result.Status)
		return
	}

	known := bytes.Fields(result.Stdout)
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[string(k)] = struct{}{}
	}

	tracked, err := w.Store.On(ctx, w.Pool.ID)
	if err != nil {
		Logger().Error("clean_unknown: listing tracked resources failed", "pool", w.Pool.ID, "error", err)
		return
	}
	trackedSet := make(map[string]struct{}, len(tracked))
	for _, r := range tracked {
		trackedSet[r.Name] = struct{}{}
	}

	for name := range knownSet {
		if _, ok := trackedSet[name]; ok {
			continue
		}
		if _, err := hook.Run(ctx, hook.Options{
			LogDir:     w.LogDir,
			ResourceID: 0,
			Kind:       hook.KindTerminate,
			Command:    w.Pool.CmdDelete,
			Env: hook.Env{
				ID:     0,
				Name:   name,
				PoolID: w.Pool.ID,
			},
		}); err != nil {
			Logger().Error("clean_unknown: cmd_delete failed to run", "pool", w.Pool.ID, "name", name, "error", err)
		}
	}
}
