package indexer

import (
	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/event"
	"github.com/darwinia-network/graph-node/log"
	"github.com/darwinia-network/graph-node/metrics"
	"github.com/darwinia-network/graph-node/store"
)

// DefaultRangeSize bounds the number of blocks requested per fetch_range
// call: large enough to amortize chain-head polling, small enough to cap
// the in-memory buffer and the latency between reorg checks.
const DefaultRangeSize = 1000

// DefaultFetchConcurrency bounds how many block fetches fetch.Range runs
// concurrently.
const DefaultFetchConcurrency = fetchConcurrencyDefault

const fetchConcurrencyDefault = 100

// Context bundles the indexer's collaborators and tuning parameters. A
// Context is constructed once per deployment and handed to a Machine; the
// machine is its sole mutator of local_head, so Context itself holds no
// mutable indexing state.
type Context struct {
	DeploymentID string

	Adapter chain.Adapter
	Store   store.Store
	Writer  store.BlockWriter
	Emitter *event.Emitter

	RangeSize        uint64
	FetchConcurrency int64

	Logger  *log.Logger
	Metrics *metrics.Registry
}

// NewContext builds a Context with RangeSize, FetchConcurrency, Logger, and
// Metrics set to their defaults.
func NewContext(deploymentID string, adapter chain.Adapter, st store.Store, writer store.BlockWriter, emitter *event.Emitter) *Context {
	return &Context{
		DeploymentID:     deploymentID,
		Adapter:          adapter,
		Store:            st,
		Writer:           writer,
		Emitter:          emitter,
		RangeSize:        DefaultRangeSize,
		FetchConcurrency: DefaultFetchConcurrency,
		Logger:           log.Default().Module("indexer"),
		Metrics:          metrics.DefaultRegistry,
	}
}
