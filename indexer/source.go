package indexer

import (
	"context"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/fetch"
)

// blockSource is the carried stream of blocks ProcessBlocks pulls from. It
// is never cloned, only moved between phases: a reorg replaces the
// underlying fetch.RangeStream with a short prepended queue of already-
// fetched blocks (the forked branch, oldest first) followed by whatever
// remained of the original range.
type blockSource struct {
	queue  []*chain.BlockWithUncles
	stream *fetch.RangeStream
}

// newRangeSource wraps a freshly started range fetch with no prepended
// blocks.
func newRangeSource(stream *fetch.RangeStream) *blockSource {
	return &blockSource{stream: stream}
}

// prepend replaces the source's queue with blocks, keeping its underlying
// stream. blocks must already be in ascending-height order.
func (s *blockSource) prepend(blocks []*chain.BlockWithUncles) *blockSource {
	return &blockSource{queue: blocks, stream: s.stream}
}

// next pulls the next item: a queued block first, falling back to the
// underlying stream once the queue drains. ok is false once both are
// exhausted.
func (s *blockSource) next(ctx context.Context) (fetch.Item, bool) {
	if s == nil {
		return fetch.Item{}, false
	}
	if len(s.queue) > 0 {
		b := s.queue[0]
		s.queue = s.queue[1:]
		return fetch.Item{Block: b}, true
	}
	if s.stream == nil {
		return fetch.Item{}, false
	}
	return s.stream.Next(ctx)
}

// close releases the underlying stream's goroutines, if any.
func (s *blockSource) close() {
	if s != nil && s.stream != nil {
		s.stream.Close()
	}
}
