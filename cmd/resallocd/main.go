// Command resallocd runs the resource-allocation broker daemon: it loads
// pools.yaml, starts the control core's tick loop, and serves until
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/giantswarm/resallocd"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "resallocd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir   = flag.String("data-dir", "", "directory for the Store database and lock file")
		configDir = flag.String("config-dir", "", "directory containing pools.yaml")
		logDir    = flag.String("log-dir", "", "directory for hook invocation logs")
		driver    = flag.String("driver", "", "Store backend: sqlite (default) or mysql")
		dsn       = flag.String("dsn", "", "driver-specific data source name")
	)
	flag.Parse()

	resallocd.SetLogger(slog.Default().With("component", "resallocd"))

	var opts []resallocd.Option
	if *dataDir != "" {
		opts = append(opts, resallocd.WithDataDir(*dataDir))
	}
	if *configDir != "" {
		opts = append(opts, resallocd.WithConfigDir(*configDir))
	}
	if *logDir != "" {
		opts = append(opts, resallocd.WithLogDir(*logDir))
	}
	if *driver != "" {
		opts = append(opts, resallocd.WithDriver(*driver, *dsn))
	}

	broker, err := resallocd.NewBroker(opts...)
	if err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker.Run(ctx)
	return nil
}
