package resallocd

import (
	"os"
	"path/filepath"
	"time"
)

// Default configuration values for NewBroker. Exported so callers can
// reference them when building custom configurations relative to a default.
const (
	// DefaultBaseDataDirName is the directory name under the system temp
	// directory used when WithDataDir is not given.
	DefaultBaseDataDirName = "resallocd"

	// DefaultSleepTime is the Manager tick wait and Watcher half-period
	// used when WithSleepTime is not given.
	DefaultSleepTime = 10 * time.Second

	// DefaultDriver is the Store backend used when WithDriver is not given.
	DefaultDriver = "sqlite"
)

func defaultBaseDataDir() string {
	return filepath.Join(os.TempDir(), DefaultBaseDataDirName)
}
