// Package fetch builds chain.BlockWithUncles values from a chain.Adapter:
// single blocks by number or by hash, and bounded-concurrency ranges that
// preserve ascending delivery order.
package fetch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darwinia-network/graph-node/chain"
)

// AdapterError wraps any failure returned by the chain.Adapter while
// assembling a block. The indexer treats every AdapterError the same way:
// drop the in-flight stream and return to chain-head polling.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter: %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ByNumber builds the full block at n, including uncles. It returns
// (nil, nil) if the remote has no header at n.
func ByNumber(ctx context.Context, adapter chain.Adapter, n uint64) (*chain.BlockWithUncles, error) {
	header, err := adapter.BlockByNumber(ctx, n)
	if err != nil {
		return nil, &AdapterError{Op: "block_by_number", Err: err}
	}
	if header == nil {
		return nil, nil
	}
	return load(ctx, adapter, header)
}

// ByHash builds the full block identified by hash, including uncles. It
// returns (nil, nil) if the remote does not know hash.
func ByHash(ctx context.Context, adapter chain.Adapter, hash common.Hash) (*chain.BlockWithUncles, error) {
	header, err := adapter.BlockByHash(ctx, hash)
	if err != nil {
		return nil, &AdapterError{Op: "block_by_hash", Err: err}
	}
	if header == nil {
		return nil, nil
	}
	return load(ctx, adapter, header)
}

// load resolves header into a full block with its uncles.
func load(ctx context.Context, adapter chain.Adapter, header *types.Header) (*chain.BlockWithUncles, error) {
	block, err := adapter.LoadFullBlock(ctx, header)
	if err != nil {
		return nil, &AdapterError{Op: "load_full_block", Err: err}
	}
	uncles, err := adapter.Uncles(ctx, block)
	if err != nil {
		return nil, &AdapterError{Op: "uncles", Err: err}
	}

	number := header.Number.Uint64()
	hash := header.Hash()
	return &chain.BlockWithUncles{
		Number:     &number,
		Hash:       &hash,
		ParentHash: header.ParentHash,
		Header:     header,
		Block:      block,
		Uncles:     uncles,
	}, nil
}
