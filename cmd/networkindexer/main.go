// Command networkindexer tracks a single blockchain's canonical chain,
// following reorgs, and emits a durable stream of Add/Revert events.
//
// Usage:
//
//	networkindexer [flags]
//
// Flags:
//
//	--deployment-id       Identifies the deployment whose chain is tracked (required)
//	--rpc-endpoint        JSON-RPC endpoint of the node to follow (required)
//	--range-size          Max blocks fetched per chain-head poll (default: 1000)
//	--fetch-concurrency   Max blocks fetched concurrently per range (default: 100)
//	--verbosity           Log level 0-5 (default: 3)
//	--metrics-addr        Address to serve Prometheus metrics on (default: 127.0.0.1:9184)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/darwinia-network/graph-node/indexer"
	"github.com/darwinia-network/graph-node/log"
	"github.com/darwinia-network/graph-node/memstore"
	"github.com/darwinia-network/graph-node/metrics"
	"github.com/darwinia-network/graph-node/node"
	"github.com/darwinia-network/graph-node/rpcadapter"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := newApp()
	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	cfg := DefaultConfig()

	app := cli.NewApp()
	app.Name = "networkindexer"
	app.Usage = "track a blockchain's canonical chain and emit an Add/Revert event stream"
	app.Version = fmt.Sprintf("%s (commit %s)", version, commit)
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "deployment-id",
			Usage:       "identifies the deployment whose chain is tracked",
			Destination: &cfg.DeploymentID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "rpc-endpoint",
			Usage:       "JSON-RPC endpoint of the node to follow",
			Destination: &cfg.RPCEndpoint,
			Required:    true,
		},
		&cli.Uint64Flag{
			Name:        "range-size",
			Usage:       "max blocks fetched per chain-head poll",
			Value:       cfg.RangeSize,
			Destination: &cfg.RangeSize,
		},
		&cli.Int64Flag{
			Name:        "fetch-concurrency",
			Usage:       "max blocks fetched concurrently per range",
			Value:       cfg.FetchConcurrency,
			Destination: &cfg.FetchConcurrency,
		},
		&cli.IntFlag{
			Name:        "verbosity",
			Usage:       "log level 0-5 (0-1=errors only, 4-5=debug)",
			Value:       cfg.Verbosity,
			Destination: &cfg.Verbosity,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "address to serve Prometheus metrics on",
			Value:       cfg.MetricsAddr,
			Destination: &cfg.MetricsAddr,
		},
	}
	app.Action = func(c *cli.Context) error {
		return runIndexer(c.Context, cfg)
	}
	return app
}

func runIndexer(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(VerbosityToLogLevel(cfg.Verbosity))
	log.SetDefault(logger)

	logger.Info("networkindexer starting",
		"version", version,
		"deployment_id", cfg.DeploymentID,
		"rpc_endpoint", cfg.RPCEndpoint,
		"range_size", cfg.RangeSize,
		"fetch_concurrency", cfg.FetchConcurrency,
		"metrics_addr", cfg.MetricsAddr,
	)

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()
	adapter, err := rpcadapter.Dial(dialCtx, cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.RPCEndpoint, err)
	}

	st := memstore.New()
	ni := indexer.New(cfg.DeploymentID, adapter, st, st,
		indexer.WithRangeSize(cfg.RangeSize),
		indexer.WithFetchConcurrency(cfg.FetchConcurrency),
	)

	bus := node.NewEventBus(16)
	defer bus.Close()
	logLifecycleEvents(ctx, bus, logger)

	lm := node.NewLifecycleManager(node.DefaultLifecycleConfig())
	metricsSvc := observe(newMetricsService(cfg.MetricsAddr, metrics.DefaultRegistry, st, cfg.DeploymentID, logger.Module("metrics")), bus)
	if err := lm.Register(metricsSvc, 0); err != nil {
		return err
	}
	indexerSvc := observe(newIndexerService(ni, logger.Module("indexer")), bus)
	if err := lm.Register(indexerSvc, 1); err != nil {
		return err
	}

	if errs := lm.StartAll(); len(errs) > 0 {
		return fmt.Errorf("startup failed: %v", errs)
	}
	logger.Info("all subsystems started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case <-ni.Done():
		logger.Warn("indexer exited on its own")
	}

	if errs := lm.StopAll(); len(errs) > 0 {
		return fmt.Errorf("shutdown failed: %v", errs)
	}
	logger.Info("shutdown complete")
	return nil
}
