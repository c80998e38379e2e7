package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/metrics"
)

// DefaultRangeConcurrency is the fan-out bound fetch_range uses unless the
// caller overrides it: up to 100 block fetches in flight at once, trading
// RPC parallelism against remote-side throttling.
const DefaultRangeConcurrency = 100

// Item is one element of a RangeStream: the block at the stream's next
// number, or nil if the remote reports a gap there, or a non-nil error if
// fetching it failed.
type Item struct {
	Block *chain.BlockWithUncles
	Err   error
}

// RangeStream lazily delivers one Item per number in [lo, hi), in ascending
// order, while fetching up to concurrency blocks in parallel. Consumption
// order matches number order regardless of which fetch completes first.
type RangeStream struct {
	items  <-chan Item
	cancel context.CancelFunc
	once   sync.Once
}

// Range starts fetching [lo, hi) with the given bounded concurrency and
// returns a stream that delivers results in ascending order. The caller
// must call Close when done with the stream, whether or not it was fully
// drained, to release the underlying goroutines.
func Range(ctx context.Context, adapter chain.Adapter, lo, hi uint64, concurrency int64) *RangeStream {
	if concurrency <= 0 {
		concurrency = DefaultRangeConcurrency
	}
	ctx, cancel := context.WithCancel(ctx)

	n := hi - lo
	slots := make([]chan Item, n)
	for i := range slots {
		slots[i] = make(chan Item, 1)
	}

	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup
	for i := uint64(0); i < n; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				slots[i] <- Item{Err: ctx.Err()}
				return
			}
			start := time.Now()
			block, err := ByNumber(ctx, adapter, lo+i)
			sem.Release(1)
			elapsedMs := float64(time.Since(start).Milliseconds())
			metrics.BlockFetchLatencyMs.Observe(elapsedMs)
			metrics.DefaultCollector.RecordHistogram("block_fetch_latency_ms", elapsedMs)
			slots[i] <- Item{Block: block, Err: err}
		}(i)
	}

	out := make(chan Item)
	go func() {
		defer close(out)
		defer wg.Wait()
		for i := uint64(0); i < n; i++ {
			select {
			case item := <-slots[i]:
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return &RangeStream{items: out, cancel: cancel}
}

// Next returns the next item in the stream. ok is false once the stream is
// exhausted (the range [lo, hi) has been fully delivered) or closed. If ctx
// is cancelled first, Next returns an item carrying ctx's error with ok
// true.
func (s *RangeStream) Next(ctx context.Context) (item Item, ok bool) {
	select {
	case item, ok = <-s.items:
		return item, ok
	case <-ctx.Done():
		return Item{Err: ctx.Err()}, true
	}
}

// Close releases the stream's goroutines. Safe to call multiple times and
// safe to call before the stream is drained; in-flight fetches are
// abandoned rather than awaited.
func (s *RangeStream) Close() {
	s.once.Do(s.cancel)
}
