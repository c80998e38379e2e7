package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Adapter is the remote chain collaborator the indexer polls and fetches
// blocks from. Implementations wrap an RPC client to a full node; all
// methods must be safe for concurrent use, since fetch.Range drives them
// from a bounded pool of goroutines.
type Adapter interface {
	// LatestBlock returns the chain head as last observed by the adapter.
	// It is advisory: it may move backwards between calls under reorgs.
	LatestBlock(ctx context.Context) (LightBlock, error)

	// BlockByNumber returns the header at n, or nil if the remote has no
	// block at that number.
	BlockByNumber(ctx context.Context, n uint64) (*types.Header, error)

	// BlockByHash returns the header with the given hash, or nil if the
	// remote does not know it.
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, error)

	// LoadFullBlock resolves a header into a full block (transactions and
	// all).
	LoadFullBlock(ctx context.Context, header *types.Header) (*types.Block, error)

	// Uncles returns the uncle headers recorded alongside block.
	Uncles(ctx context.Context, block *types.Block) ([]*types.Header, error)
}
