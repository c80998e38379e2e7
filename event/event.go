// Package event defines the NetworkIndexerEvent stream the indexer state
// machine produces downstream: block additions and reorg reverts, delivered
// on a bounded channel with backpressure.
package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/darwinia-network/graph-node/chain"
)

// Capacity is the bound on the downstream event channel. Sending blocks
// once it fills, propagating backpressure into the state machine and, from
// there, into block fetching.
const Capacity = 100

// ErrDownstreamClosed is returned by Emit when the downstream consumer has
// signalled it is no longer interested (its context was cancelled). The
// indexer treats this as a clean shutdown, not a failure.
var ErrDownstreamClosed = errors.New("event: downstream channel closed")

// Kind distinguishes the two NetworkIndexerEvent variants.
type Kind int

const (
	// KindAddBlock reports that a block was durably indexed.
	KindAddBlock Kind = iota
	// KindRevert reports that the local chain was rolled back from one
	// pointer to an earlier one.
	KindRevert
)

// Event is the tagged union NetworkIndexerEvent = AddBlock(pointer) |
// Revert{from, to}. Only the fields relevant to Kind are meaningful.
type Event struct {
	Kind Kind

	// Pointer is set for KindAddBlock.
	Pointer chain.BlockPointer

	// From and To are set for KindRevert.
	From chain.BlockPointer
	To   chain.BlockPointer
}

// AddBlock constructs an AddBlock event for pointer p.
func AddBlock(p chain.BlockPointer) Event {
	return Event{Kind: KindAddBlock, Pointer: p}
}

// Revert constructs a Revert event moving the local chain from "from" to
// "to".
func Revert(from, to chain.BlockPointer) Event {
	return Event{Kind: KindRevert, From: from, To: to}
}

// String renders the event in the stable wire format downstream consumers
// depend on: "Add block: #<n>/<hex_hash>" or
// "Revert: From #<n>/<hex> to #<n>/<hex>".
func (e Event) String() string {
	switch e.Kind {
	case KindAddBlock:
		return fmt.Sprintf("Add block: %s", e.Pointer)
	case KindRevert:
		return fmt.Sprintf("Revert: From %s to %s", e.From, e.To)
	default:
		return "unknown event"
	}
}

// Emitter delivers events on a bounded channel of Capacity. It has exactly
// one writer (the state machine) and is safe to read from concurrently.
type Emitter struct {
	ch chan Event
}

// NewEmitter returns a ready-to-use Emitter.
func NewEmitter() *Emitter {
	return &Emitter{ch: make(chan Event, Capacity)}
}

// Events returns the receiving end of the event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Emit delivers ev, blocking if the channel is full (backpressure). It
// returns ErrDownstreamClosed if ctx is cancelled before the send completes
// — the Go stand-in for the source's closed-sink check, since a downstream
// consumer here signals disinterest by cancelling ctx rather than by
// closing a channel it does not own.
func (e *Emitter) Emit(ctx context.Context, ev Event) error {
	select {
	case e.ch <- ev:
		return nil
	case <-ctx.Done():
		return ErrDownstreamClosed
	}
}

// Close closes the underlying channel. Callers must ensure no further Emit
// calls occur afterward.
func (e *Emitter) Close() {
	close(e.ch)
}
