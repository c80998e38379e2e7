// Package reorg implements the two helpers the indexer state machine uses
// to reconcile a detected fork: walking the remote branch backwards to find
// the common ancestor, and walking the local store forwards from the old
// head to enumerate what must be reverted.
package reorg

import (
	"context"
	"errors"
	"fmt"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/fetch"
	"github.com/darwinia-network/graph-node/store"
)

// ErrAncestorNotRetrievable is returned by ForkedBlocks when a claimed
// ancestor cannot be fetched from the remote, or reports a gap. The reorg
// will be retried on a future chain head that may present a different
// branch.
var ErrAncestorNotRetrievable = errors.New("reorg: claimed ancestor not retrievable")

// ErrStoreInconsistency is returned by BlocksToRevert when a block known to
// be part of the local chain is missing from the store, or its parent
// field is absent or invalid.
var ErrStoreInconsistency = errors.New("reorg: store inconsistency")

// ForkedBlocks walks backwards from head along parent_hash, fetching each
// ancestor by hash, until it reaches a block already present in the local
// store — the fork base. It returns the collected blocks in descending
// order, [head, head.parent, ..., fork_base], fork_base included.
//
// The presence check happens on the current candidate before its parent is
// fetched, not after: head itself is checked first, so a head that already
// matches something in the store short-circuits with a single-element
// result.
func ForkedBlocks(ctx context.Context, adapter chain.Adapter, st store.Store, deploymentID string, head *chain.BlockWithUncles) ([]*chain.BlockWithUncles, error) {
	list := []*chain.BlockWithUncles{head}
	current := head

	for {
		present, err := blockPresent(ctx, st, deploymentID, current.Pointer())
		if err != nil {
			return nil, err
		}
		if present {
			return list, nil
		}

		parentPtr := current.ParentPointer()
		if parentPtr == nil {
			return nil, fmt.Errorf("%w: reached genesis %s without finding a common ancestor", ErrAncestorNotRetrievable, current.Pointer())
		}

		parent, err := fetch.ByHash(ctx, adapter, parentPtr.Hash)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: %s", ErrAncestorNotRetrievable, *parentPtr)
		}

		list = append(list, parent)
		current = parent
	}
}

func blockPresent(ctx context.Context, st store.Store, deploymentID string, p chain.BlockPointer) (bool, error) {
	entity, err := st.Get(ctx, store.BlockEntityKey(deploymentID, p.Hash))
	if err != nil {
		return false, err
	}
	return entity != nil, nil
}

// BlocksToRevert starts from localHead and repeatedly reads the stored
// entity for the current pointer, following its parent field, until it
// reaches forkBase. It returns the collected pointers in descending order,
// [localHead, ..., forkBase], forkBase included.
func BlocksToRevert(ctx context.Context, st store.Store, deploymentID string, localHead, forkBase chain.BlockPointer) ([]chain.BlockPointer, error) {
	list := []chain.BlockPointer{localHead}
	current := localHead

	for !current.Equal(forkBase) {
		if current.Number == 0 {
			return nil, fmt.Errorf("%w: reached genesis %s before reaching fork base %s", ErrStoreInconsistency, current, forkBase)
		}

		entity, err := st.Get(ctx, store.BlockEntityKey(deploymentID, current.Hash))
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, fmt.Errorf("%w: block %s missing from store", ErrStoreInconsistency, current)
		}

		parentHash, err := entity.ParentHash()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreInconsistency, err)
		}

		parent := chain.BlockPointer{Number: current.Number - 1, Hash: parentHash}
		list = append(list, parent)
		current = parent
	}

	return list, nil
}

// Pairs returns the consecutive (from, to) pairs in a descending pointer
// list as produced by BlocksToRevert, in the order revert_block_operations
// must be called: the newest pair first.
func Pairs(pointers []chain.BlockPointer) []struct{ From, To chain.BlockPointer } {
	if len(pointers) < 2 {
		return nil
	}
	pairs := make([]struct{ From, To chain.BlockPointer }, 0, len(pointers)-1)
	for i := 0; i < len(pointers)-1; i++ {
		pairs = append(pairs, struct{ From, To chain.BlockPointer }{From: pointers[i], To: pointers[i+1]})
	}
	return pairs
}
