package resallocd

import (
	"fmt"
	"time"
)

// brokerConfig accumulates NewBroker's options before construction.
type brokerConfig struct {
	baseDataDir string
	configDir   string
	logDir      string
	driver      string
	dsn         string
	sleepTime   time.Duration
}

func defaultBrokerConfig() brokerConfig {
	dataDir := defaultBaseDataDir()
	return brokerConfig{
		baseDataDir: dataDir,
		configDir:   dataDir,
		logDir:      dataDir,
		driver:      DefaultDriver,
		sleepTime:   DefaultSleepTime,
	}
}

// Option configures a Broker during construction via NewBroker. Several
// With* functions panic on invalid input (empty paths, non-positive
// durations): option values are typically compile-time constants, so an
// invalid value indicates a programmer error rather than a runtime
// condition, matching the teacher's ManagerOption convention.
type Option func(*brokerConfig)

func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("resallocd: %s must not be empty", name))
	}
}

// WithDataDir sets the directory the Store locks and persists its database
// file in. Default: a "resallocd" directory under the system temp dir.
// Panics if dir is empty.
func WithDataDir(dir string) Option {
	requireNonEmpty("data directory", dir)
	return func(c *brokerConfig) { c.baseDataDir = dir }
}

// WithConfigDir sets the directory pools.yaml is read from. Default: the
// same directory as WithDataDir. Panics if dir is empty.
func WithConfigDir(dir string) Option {
	requireNonEmpty("config directory", dir)
	return func(c *brokerConfig) { c.configDir = dir }
}

// WithLogDir sets the directory hook invocation logs are written under.
// Default: the same directory as WithDataDir. Panics if dir is empty.
func WithLogDir(dir string) Option {
	requireNonEmpty("log directory", dir)
	return func(c *brokerConfig) { c.logDir = dir }
}

// WithDriver selects the Store's SQL backend: "sqlite" (default) or "mysql".
// Panics if driver is empty.
func WithDriver(driver, dsn string) Option {
	requireNonEmpty("driver", driver)
	return func(c *brokerConfig) {
		c.driver = driver
		c.dsn = dsn
	}
}

// WithSleepTime overrides the Manager tick wait / Watcher half-period.
// Default: 10 seconds. Panics if d <= 0.
func WithSleepTime(d time.Duration) Option {
	if d <= 0 {
		panic("resallocd: sleep time must be greater than 0")
	}
	return func(c *brokerConfig) { c.sleepTime = d }
}
