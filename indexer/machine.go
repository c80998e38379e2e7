// Package indexer implements the network indexer state machine: the driver
// that interleaves chain-head polling, bounded-parallel block fetching,
// reorg detection, fork-base discovery, store revert, and downstream event
// emission.
package indexer

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/event"
	"github.com/darwinia-network/graph-node/fetch"
	"github.com/darwinia-network/graph-node/metrics"
	"github.com/darwinia-network/graph-node/reorg"
)

// Machine drives one deployment's indexing lifecycle. It is a
// single-threaded cooperative state machine: phase identifies the current
// state, and Run dispatches on it to one step method per iteration, each
// making at most one transition. Machine is
// not safe for concurrent use; Run owns it exclusively for its lifetime.
type Machine struct {
	ctx *Context

	phase phase
	err   error

	localHead *chain.BlockPointer
	chainHead chain.BlockPointer

	source  *blockSource
	current *chain.BlockWithUncles

	forkBase chain.BlockPointer
}

// NewMachine returns a Machine in its entry state, ready for Run.
func NewMachine(c *Context) *Machine {
	return &Machine{ctx: c, phase: phaseStart}
}

// Run drives the machine until it terminates: cleanly, when ctx is
// cancelled (the downstream-closed signal, checked at the top of every
// phase), or fatally, when the initial local-head load fails. A clean
// shutdown returns nil; a fatal failure returns the error that caused it.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			m.source.close()
			return nil
		}

		switch m.phase {
		case phaseStart:
			m.phase = phaseLoadLocalHead
		case phaseLoadLocalHead:
			m.stepLoadLocalHead(ctx)
		case phasePollChainHead:
			m.stepPollChainHead(ctx)
		case phaseProcessBlocks:
			m.stepProcessBlocks(ctx)
		case phaseVetBlock:
			m.stepVetBlock(ctx)
		case phaseFetchForkedBlocks:
			m.stepFetchForkedBlocks(ctx)
		case phaseRevertToForkBase:
			m.stepRevertToForkBase(ctx)
		case phaseAddBlock:
			m.stepAddBlock(ctx)
		case phaseFailed:
			m.ctx.Logger.Error("indexer failed", "deployment", m.ctx.DeploymentID, "err", m.err)
			m.source.close()
			return m.err
		}
	}
}

// dropStream discards the in-flight stream and returns to PollChainHead,
// the recovery path shared by nearly every non-fatal error (§7 policy:
// every non-fatal error discards the current stream and re-polls).
func (m *Machine) dropStream() {
	m.source.close()
	m.source = nil
	m.phase = phasePollChainHead
}

func (m *Machine) stepLoadLocalHead(ctx context.Context) {
	head, err := m.ctx.Store.BlockPtr(ctx, m.ctx.DeploymentID)
	if err != nil {
		m.err = fmt.Errorf("%w: %v", ErrLocalHeadUnavailable, err)
		m.phase = phaseFailed
		return
	}
	m.localHead = head
	m.phase = phasePollChainHead
}

func (m *Machine) stepPollChainHead(ctx context.Context) {
	lb, err := m.ctx.Adapter.LatestBlock(ctx)
	if err != nil {
		m.ctx.Logger.Warn("chain head poll failed, retrying", "err", err)
		return // stay in PollChainHead
	}
	if !lb.Valid() {
		m.ctx.Logger.Warn("adapter returned invalid chain head, retrying")
		return // stay in PollChainHead
	}

	m.chainHead = lb.Pointer()

	var next uint64
	if m.localHead != nil {
		next = m.localHead.Number + 1
	}

	// headExclusive = chainHead.Number + 1, computed via uint256 so a chain
	// head sitting at math.MaxUint64 (an adapter bug, not a real chain
	// state) is detected as exceeding the uint64 range instead of silently
	// wrapping to 0 and reporting the chain as having gone backwards.
	headExclusive := new(uint256.Int).Add(uint256.NewInt(m.chainHead.Number), uint256.NewInt(1))
	if !headExclusive.IsUint64() {
		m.ctx.Logger.Warn("chain head at uint64 max, holding position", "number", m.chainHead.Number)
		return // stay in PollChainHead
	}

	nextU := uint256.NewInt(next)
	if headExclusive.Cmp(nextU) <= 0 {
		// Chain head is at or behind local head: nothing new to fetch.
		// Covers the "remote reports chain head equal to local head"
		// boundary case, and the symmetric case of an advisory chain
		// head that has (temporarily) moved backwards.
		return // stay in PollChainHead
	}

	remainingU := new(uint256.Int).Sub(headExclusive, nextU)
	remaining := remainingU.Uint64()
	size := remaining
	if size > m.ctx.RangeSize {
		size = m.ctx.RangeSize
	}
	hi := next + size

	m.ctx.Metrics.Gauge("chain_head_lag").Set(int64(remaining))

	stream := fetch.Range(ctx, m.ctx.Adapter, next, hi, m.ctx.FetchConcurrency)
	m.source = newRangeSource(stream)
	m.phase = phaseProcessBlocks
}

func (m *Machine) stepProcessBlocks(ctx context.Context) {
	item, ok := m.source.next(ctx)
	if !ok {
		// Stream exhausted: carry local_head, drop the stream.
		m.dropStream()
		return
	}
	if item.Err != nil {
		m.ctx.Logger.Warn("block stream error", "err", item.Err)
		m.ctx.Metrics.Counter("block_fetch_errors_total").Inc()
		m.dropStream()
		return
	}
	if item.Block == nil {
		m.ctx.Logger.Warn("remote gap encountered, re-polling chain head")
		m.dropStream()
		return
	}

	m.current = item.Block
	m.phase = phaseVetBlock
}

func (m *Machine) stepVetBlock(ctx context.Context) {
	b := m.current

	if !b.Valid() {
		m.ctx.Logger.Warn("invalid upstream block, re-polling chain head")
		m.dropStream()
		return
	}
	if m.localHead != nil && b.Pointer().Number < m.localHead.Number {
		m.ctx.Logger.Warn("stale block below local head, re-polling chain head", "block", b.Pointer())
		m.dropStream()
		return
	}
	if b.IsSuccessorOf(m.localHead) {
		m.phase = phaseAddBlock
		return
	}

	m.ctx.Logger.Warn("reorg detected", "block", b.Pointer(), "local_head", m.localHead)
	m.phase = phaseFetchForkedBlocks
}

func (m *Machine) stepFetchForkedBlocks(ctx context.Context) {
	blocks, err := reorg.ForkedBlocks(ctx, m.ctx.Adapter, m.ctx.Store, m.ctx.DeploymentID, m.current)
	if err != nil {
		m.ctx.Logger.Warn("reorg walk failed, re-polling chain head", "err", err)
		m.dropStream()
		return
	}

	// blocks == [head, ..., fork_base], descending. Drop the fork base and
	// replay the remainder in ascending order ahead of whatever was left
	// of the carried stream.
	forkBase := blocks[len(blocks)-1].Pointer()
	remainder := blocks[:len(blocks)-1]

	ascending := make([]*chain.BlockWithUncles, len(remainder))
	for i, blk := range remainder {
		ascending[len(remainder)-1-i] = blk
	}

	m.source = m.source.prepend(ascending)
	m.forkBase = forkBase
	m.phase = phaseRevertToForkBase
}

func (m *Machine) stepRevertToForkBase(ctx context.Context) {
	// A reorg can only be detected once a local head exists (VetBlock's
	// successor check against a nil local_head always matches genesis),
	// so local_head is guaranteed non-nil here.
	pointers, err := reorg.BlocksToRevert(ctx, m.ctx.Store, m.ctx.DeploymentID, *m.localHead, m.forkBase)
	if err != nil {
		m.ctx.Logger.Warn("collect blocks to revert failed, re-polling chain head", "err", err)
		m.dropStream()
		return
	}

	pairs := reorg.Pairs(pointers)
	for _, pair := range pairs {
		if err := m.ctx.Store.RevertBlockOperations(ctx, m.ctx.DeploymentID, pair.From, pair.To); err != nil {
			m.ctx.Logger.Warn("revert_block_operations failed, re-polling chain head", "err", err)
			m.dropStream()
			return
		}
		if err := m.ctx.Emitter.Emit(ctx, event.Revert(pair.From, pair.To)); err != nil {
			return // downstream closed; caught at the top of the next Run iteration
		}
	}

	m.localHead = &m.forkBase
	m.ctx.Metrics.Counter("reorgs_detected_total").Inc()
	m.ctx.Metrics.Histogram("revert_depth").Observe(float64(len(pairs)))
	m.phase = phaseProcessBlocks
}

func (m *Machine) stepAddBlock(ctx context.Context) {
	b := m.current

	if err := m.ctx.Writer.Write(ctx, m.ctx.DeploymentID, b); err != nil {
		m.ctx.Logger.Warn("write_block failed, re-polling chain head", "err", err)
		m.dropStream()
		return
	}

	p := b.Pointer()
	if err := m.ctx.Emitter.Emit(ctx, event.AddBlock(p)); err != nil {
		return // downstream closed; caught at the top of the next Run iteration
	}

	m.localHead = &p
	m.ctx.Metrics.Counter("blocks_indexed_total").Inc()
	metrics.BlocksIndexedRate.Mark(1)
	m.phase = phaseProcessBlocks
}
