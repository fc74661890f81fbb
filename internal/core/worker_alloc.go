package core

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/giantswarm/resallocd/internal/backoff"
	"github.com/giantswarm/resallocd/internal/compressor"
	"github.com/giantswarm/resallocd/internal/hook"
	"github.com/giantswarm/resallocd/internal/store"
)

// allocCaptureBytes is the fixed capture budget for cmd_new's stdout,
// per spec.md §4.3 AllocWorker step 2.
const allocCaptureBytes = 512

// AllocWorker drives a single STARTING resource through cmd_new. One struct
// per action, plain fields, a single Run method — no thread-local
// forwarding or inheritance, per spec.md §9's re-architecture guidance.
type AllocWorker struct {
	Store      *store.Store
	LogDir     string
	Event      *Event
	Pool       PoolConfig
	ResourceID int64
}

// Run executes spec.md §4.3's AllocWorker steps. Never holds a Store
// transaction across the hook invocation: it snapshots, releases, runs the
// hook, then re-enters a transaction to commit — the non-negotiable
// invariant of spec.md §5.
func (w AllocWorker) Run(ctx context.Context) {
	defer w.Event.Set()

	res, err := w.Store.GetResource(ctx, w.ResourceID)
	if err != nil {
		Logger().Error("alloc: snapshot failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}
	var idInPool *int
	if id, ok, err := w.Store.GetIDWithinPoolForResource(ctx, w.ResourceID); err == nil && ok {
		idInPool = &id
	}

	result, err := hook.Run(ctx, hook.Options{
		LogDir:     w.LogDir,
		ResourceID: w.ResourceID,
		Kind:       hook.KindAlloc,
		Command:    w.Pool.CmdNew,
		Env: hook.Env{
			ID:       res.ID,
			Name:     res.Name,
			PoolID:   w.Pool.ID,
			IDInPool: idInPool,
		},
		CaptureBytes: allocCaptureBytes,
		SecureLines:  false,
	})
	if err != nil {
		Logger().Error("alloc: hook failed to run", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}

	success := result.Status == 0
	data := result.Stdout
	if success {
		if codec, ok := compressor.Lookup(w.Pool.DataCodec); ok {
			if compressed, cerr := codec.Compress(data); cerr == nil {
				data = compressed
			} else {
				Logger().Warn("alloc: data compression failed, storing uncompressed", "pool", w.Pool.ID, "resource", w.ResourceID, "codec", codec.Name(), "error", cerr)
			}
		} else {
			Logger().Warn("alloc: unknown data_codec, storing uncompressed", "pool", w.Pool.ID, "codec", w.Pool.DataCodec)
		}
	}

	err = backoff.Retry(ctx, backoff.Default, func() error {
		return w.Store.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := store.CompleteAlloc(ctx, tx, w.ResourceID, success, data); err != nil {
				return err
			}
			if success {
				return store.InsertResourceTags(ctx, tx, w.ResourceID, tagsFromConfig(w.ResourceID, w.Pool.Tags))
			}
			return store.DeleteIDWithinPoolByResource(ctx, tx, w.ResourceID)
		})
	})
	if err != nil {
		Logger().Error("alloc: commit failed", "pool", w.Pool.ID, "resource", w.ResourceID, "error", err)
		return
	}

	if !success {
		Logger().Warn("alloc: cmd_new failed, resource ended", "pool", w.Pool.ID, "resource", w.ResourceID, "status", result.Status)
	}
}

func tagsFromConfig(resourceID int64, tags []Tag) []store.ResourceTag {
	out := make([]store.ResourceTag, 0, len(tags))
	for _, t := range tags {
		out = append(out, store.ResourceTag{ResourceID: resourceID, TagName: strings.TrimSpace(t.Name), Priority: t.Priority})
	}
	return out
}
