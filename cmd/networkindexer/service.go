package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/event"
	"github.com/darwinia-network/graph-node/indexer"
	"github.com/darwinia-network/graph-node/log"
	"github.com/darwinia-network/graph-node/metrics"
	"github.com/darwinia-network/graph-node/node"
)

// headReader is the subset of store.Store a metricsService needs to expose
// the local block height on /debug/vars. memstore.Store and every other
// store.Store implementation satisfy it.
type headReader interface {
	BlockPtr(ctx context.Context, deploymentID string) (*chain.BlockPointer, error)
}

// logReportBackend adapts *log.Logger to metrics.ReportBackend, logging a
// structured snapshot line on every reporting interval.
type logReportBackend struct {
	logger *log.Logger
}

func (b logReportBackend) Report(snapshot map[string]float64) error {
	args := make([]interface{}, 0, len(snapshot)*2)
	for k, v := range snapshot {
		args = append(args, k, v)
	}
	b.logger.Debug("metrics snapshot", args...)
	return nil
}

// indexerService adapts a *indexer.NetworkIndexer to node.Service, so its
// lifecycle can be driven by node.LifecycleManager alongside other
// subsystems (the metrics server, in this binary).
type indexerService struct {
	ni     *indexer.NetworkIndexer
	logger *log.Logger
	done   chan struct{}
}

func newIndexerService(ni *indexer.NetworkIndexer, logger *log.Logger) *indexerService {
	return &indexerService{ni: ni, logger: logger, done: make(chan struct{})}
}

func (s *indexerService) Name() string { return "indexer" }

func (s *indexerService) Start() error {
	s.ni.Start(context.Background())
	events, ok := s.ni.Events()
	if !ok {
		return errors.New("indexer events already consumed")
	}
	go s.logEvents(events)
	return nil
}

func (s *indexerService) logEvents(events <-chan event.Event) {
	defer close(s.done)
	for ev := range events {
		switch ev.Kind {
		case event.KindAddBlock:
			s.logger.Info(ev.String(), "number", ev.Pointer.Number)
		case event.KindRevert:
			s.logger.Warn(ev.String(), "from", ev.From.Number, "to", ev.To.Number)
		}
	}
}

func (s *indexerService) Stop() error {
	s.ni.Stop()
	<-s.done
	return nil
}

// metricsService serves the Prometheus exposition endpoint and a /debug/vars
// JSON endpoint over HTTP, and drives a MetricsReporter that logs a
// snapshot of the registry every reportInterval.
type metricsService struct {
	addr     string
	server   *http.Server
	sys      *metrics.SystemMetrics
	reporter *metrics.MetricsReporter
	registry *metrics.Registry
	stopSync chan struct{}
}

const (
	reportInterval = 30 * time.Second
	syncInterval   = 5 * time.Second
)

func newMetricsService(addr string, registry *metrics.Registry, heads headReader, deploymentID string, logger *log.Logger) *metricsService {
	sys := metrics.NewSystemMetrics()
	sys.SetBlockHeightFunc(func() uint64 {
		ptr, err := heads.BlockPtr(context.Background(), deploymentID)
		if err != nil || ptr == nil {
			return 0
		}
		return ptr.Number
	})

	reporter := metrics.NewMetricsReporter(reportInterval)
	reporter.RegisterBackend("log", logReportBackend{logger: logger})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.NewHandler(registry))
	mux.HandleFunc("/debug/vars", func(w http.ResponseWriter, r *http.Request) {
		data, err := sys.ExportJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("/debug/indexing-rate", func(w http.ResponseWriter, r *http.Request) {
		rate := map[string]float64{
			"rate1":  metrics.BlocksIndexedRate.Rate1(),
			"rate5":  metrics.BlocksIndexedRate.Rate5(),
			"rate15": metrics.BlocksIndexedRate.Rate15(),
			"count":  float64(metrics.BlocksIndexedRate.Count()),
		}
		data, err := json.Marshal(rate)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	mux.HandleFunc("/debug/fetch-latency", func(w http.ResponseWriter, r *http.Request) {
		p := map[string]float64{
			"p50": metrics.DefaultCollector.HistogramPercentile("block_fetch_latency_ms", 50),
			"p95": metrics.DefaultCollector.HistogramPercentile("block_fetch_latency_ms", 95),
			"p99": metrics.DefaultCollector.HistogramPercentile("block_fetch_latency_ms", 99),
		}
		data, err := json.Marshal(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	return &metricsService{
		addr:     addr,
		server:   &http.Server{Addr: addr, Handler: mux},
		sys:      sys,
		reporter: reporter,
		registry: registry,
		stopSync: make(chan struct{}),
	}
}

func (s *metricsService) Name() string { return "metrics" }

func (s *metricsService) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go s.server.Serve(ln)

	s.syncReporter()
	go s.syncLoop()
	s.reporter.Start()
	return nil
}

// syncLoop periodically copies the registry's counter/gauge values into the
// reporter, since Registry is pull-based (Snapshot) while MetricsReporter is
// push-based (RecordMetric).
func (s *metricsService) syncLoop() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.syncReporter()
		case <-s.stopSync:
			return
		}
	}
}

func (s *metricsService) syncReporter() {
	for name, v := range s.registry.Snapshot() {
		if iv, ok := v.(int64); ok {
			s.reporter.RecordMetric(name, float64(iv))
		}
	}
}

func (s *metricsService) Stop() error {
	close(s.stopSync)
	s.reporter.Stop()
	return s.server.Shutdown(context.Background())
}

var _ node.Service = (*indexerService)(nil)
var _ node.Service = (*metricsService)(nil)

// observedService wraps a node.Service, publishing its lifecycle
// transitions on an EventBus so other subsystems (here, just a logging
// subscriber) can react without coupling directly to LifecycleManager.
type observedService struct {
	node.Service
	bus *node.EventBus
}

func observe(svc node.Service, bus *node.EventBus) *observedService {
	return &observedService{Service: svc, bus: bus}
}

func (s *observedService) Start() error {
	s.bus.Publish(node.EventServiceStarting, s.Name())
	if err := s.Service.Start(); err != nil {
		s.bus.Publish(node.EventServiceFailed, s.Name())
		return err
	}
	s.bus.Publish(node.EventServiceStarted, s.Name())
	return nil
}

func (s *observedService) Stop() error {
	s.bus.Publish(node.EventServiceStopping, s.Name())
	if err := s.Service.Stop(); err != nil {
		s.bus.Publish(node.EventServiceFailed, s.Name())
		return err
	}
	s.bus.Publish(node.EventServiceStopped, s.Name())
	return nil
}

// logLifecycleEvents subscribes to bus and logs every service lifecycle
// transition until ctx is cancelled.
func logLifecycleEvents(ctx context.Context, bus *node.EventBus, logger *log.Logger) {
	sub := bus.SubscribeMultiple(
		node.EventServiceStarting, node.EventServiceStarted,
		node.EventServiceStopping, node.EventServiceStopped,
		node.EventServiceFailed,
	)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev, ok := <-sub.Chan():
				if !ok {
					return
				}
				logger.Debug("service lifecycle event", "type", string(ev.Type), "service", ev.Data)
			case <-ctx.Done():
				return
			}
		}
	}()
}
