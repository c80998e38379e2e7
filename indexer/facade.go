package indexer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/event"
	"github.com/darwinia-network/graph-node/store"
)

// NetworkIndexer is the public entry point: it constructs the machine's
// Context, spawns the state machine as a background task, and exposes the
// output event stream exactly once.
type NetworkIndexer struct {
	ctx     *Context
	cancel  context.CancelFunc
	started sync.Once
	stopped sync.Once
	done    chan struct{}

	eventsTaken atomic.Bool
}

// Option customizes the Context a NetworkIndexer is built with.
type Option func(*Context)

// WithRangeSize overrides DefaultRangeSize.
func WithRangeSize(n uint64) Option {
	return func(c *Context) { c.RangeSize = n }
}

// WithFetchConcurrency overrides DefaultFetchConcurrency.
func WithFetchConcurrency(n int64) Option {
	return func(c *Context) { c.FetchConcurrency = n }
}

// New constructs a NetworkIndexer for deploymentID against the given
// collaborators. It does not start the machine; call Start for that.
func New(deploymentID string, adapter chain.Adapter, st store.Store, writer store.BlockWriter, opts ...Option) *NetworkIndexer {
	emitter := event.NewEmitter()
	c := NewContext(deploymentID, adapter, st, writer, emitter)
	for _, opt := range opts {
		opt(c)
	}
	return &NetworkIndexer{
		ctx:  c,
		done: make(chan struct{}),
	}
}

// Start spawns the state machine as a background goroutine. It is safe to
// call multiple times; only the first call has effect.
func (n *NetworkIndexer) Start(ctx context.Context) {
	n.started.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		n.cancel = cancel
		go func() {
			defer close(n.done)
			defer n.ctx.Emitter.Close()
			NewMachine(n.ctx).Run(runCtx)
		}()
	})
}

// Events returns the receiving end of the output event stream. It may only
// be retrieved once; subsequent calls return (nil, false).
func (n *NetworkIndexer) Events() (<-chan event.Event, bool) {
	if !n.eventsTaken.CompareAndSwap(false, true) {
		return nil, false
	}
	return n.ctx.Emitter.Events(), true
}

// Stop signals the state machine to shut down by cancelling its run
// context — the indexer's stand-in for a consumer dropping the downstream
// channel — and blocks until the background task exits.
func (n *NetworkIndexer) Stop() {
	n.stopped.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
	})
	<-n.done
}

// Done returns a channel closed once the background task has exited, for
// callers that want to observe termination without calling Stop.
func (n *NetworkIndexer) Done() <-chan struct{} {
	return n.done
}
