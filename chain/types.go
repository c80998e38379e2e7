// Package chain defines the block types the network indexer operates on:
// block pointers, light headers as returned by chain-head polling, and
// fully-loaded blocks with their uncle headers.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockPointer uniquely identifies an indexed block by number and hash.
type BlockPointer struct {
	Number uint64
	Hash   common.Hash
}

// String renders the pointer as "#<n>/<hex>", matching the event wire format.
func (p BlockPointer) String() string {
	return fmt.Sprintf("#%d/%s", p.Number, p.Hash.Hex())
}

// Equal reports whether p and other identify the same block.
func (p BlockPointer) Equal(other BlockPointer) bool {
	return p.Number == other.Number && p.Hash == other.Hash
}

// optionalPtrEqual compares two possibly-nil block pointers for equality,
// treating both-nil as equal. This is the Go translation of the source's
// Option<BlockPointer> equality: it lets genesis (local_head == none)
// compare equal to a block whose computed parent pointer is also none,
// without a special case for block number 0.
func optionalPtrEqual(a, b *BlockPointer) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// LightBlock is the header view returned by chain-head polling. Number and
// Hash are optional; a LightBlock is only Valid when both are present.
type LightBlock struct {
	Number *uint64
	Hash   *common.Hash
}

// Valid reports whether both Number and Hash are present.
func (b LightBlock) Valid() bool {
	return b.Number != nil && b.Hash != nil
}

// Pointer returns the BlockPointer for a valid LightBlock. Callers must
// check Valid first; Pointer panics on an invalid block.
func (b LightBlock) Pointer() BlockPointer {
	return BlockPointer{Number: *b.Number, Hash: *b.Hash}
}

// BlockWithUncles is a fully-loaded block plus its uncle headers. Number and
// Hash are optional (mirroring the upstream header shape the adapter
// returns); ParentHash is always present once a header has been loaded.
type BlockWithUncles struct {
	Number     *uint64
	Hash       *common.Hash
	ParentHash common.Hash

	Header *types.Header
	Block  *types.Block
	Uncles []*types.Header
}

// Valid reports whether both Number and Hash are present.
func (b *BlockWithUncles) Valid() bool {
	return b != nil && b.Number != nil && b.Hash != nil
}

// Pointer returns the BlockPointer for a valid block. Callers must check
// Valid first.
func (b *BlockWithUncles) Pointer() BlockPointer {
	return BlockPointer{Number: *b.Number, Hash: *b.Hash}
}

// ParentPointer returns the pointer of b's predecessor: (number-1,
// parent_hash). For a genesis block (number 0) the parent is undefined and
// ParentPointer returns nil.
func (b *BlockWithUncles) ParentPointer() *BlockPointer {
	if b == nil || b.Number == nil || *b.Number == 0 {
		return nil
	}
	return &BlockPointer{Number: *b.Number - 1, Hash: b.ParentHash}
}

// IsSuccessorOf reports whether b's parent pointer matches head, where head
// may be nil (meaning "no local head yet", i.e. b must be genesis).
func (b *BlockWithUncles) IsSuccessorOf(head *BlockPointer) bool {
	return optionalPtrEqual(b.ParentPointer(), head)
}
