package resallocd

import (
	"context"
	"sync"

	"github.com/giantswarm/resallocd/internal/config"
	"github.com/giantswarm/resallocd/internal/core"
	"github.com/giantswarm/resallocd/internal/store"
)

// Broker is the public facade over the control core: Store, Manager, and
// Watcher, wired together the way the teacher's managerWrapper wraps
// core.Manager — an unexported field rather than embedding, so callers
// cannot type-assert their way to internal methods not part of this API.
type Broker struct {
	store  *store.Store
	event  *core.Event
	ready  *core.ResourceReady
	loader *config.Loader
	cfg    brokerConfig

	manager core.Manager
	watcher core.Watcher
}

// NewBroker opens the Store (acquiring the data-directory lock) and builds
// a Broker ready for Run. It performs I/O: creating the data directory's
// lock file and applying the schema if the backend is sqlite.
func NewBroker(opts ...Option) (*Broker, error) {
	cfg := defaultBrokerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(context.Background(), store.Config{
		Driver:      cfg.driver,
		DSN:         cfg.dsn,
		BaseDataDir: cfg.baseDataDir,
	})
	if err != nil {
		return nil, err
	}

	event := core.NewEvent()
	ready := core.NewResourceReady()
	loader := config.NewLoader(cfg.configDir)
	provider := loader.Snapshot()

	b := &Broker{
		store:  st,
		event:  event,
		ready:  ready,
		loader: loader,
		cfg:    cfg,
	}
	b.manager = core.Manager{
		Store:    st,
		LogDir:   cfg.logDir,
		Config:   provider,
		Event:    event,
		Ready:    ready,
		SleepFor: cfg.sleepTime,
	}
	b.watcher = core.Watcher{
		Store:    st,
		LogDir:   cfg.logDir,
		Config:   provider,
		SleepFor: cfg.sleepTime,
	}
	return b, nil
}

// Run starts the Manager tick loop and the independent Watcher loop,
// blocking until ctx is canceled.
func (b *Broker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.manager.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		b.watcher.Run(ctx)
	}()
	wg.Wait()
}

// Close releases the Store's connection and data-directory lock. Run should
// have already returned (its ctx canceled) before calling Close.
func (b *Broker) Close() error {
	return b.store.Close()
}
