// Package rpcadapter implements chain.Adapter against a real full node over
// JSON-RPC, using go-ethereum's ethclient. It is the concrete collaborator
// cmd/networkindexer wires into the indexer facade; the indexer core never
// imports it directly.
package rpcadapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/darwinia-network/graph-node/chain"
)

// Client is the subset of ethclient.Client this adapter depends on, so
// tests can substitute a fake without dialing a real node.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
}

// Adapter wraps a JSON-RPC client as a chain.Adapter.
type Adapter struct {
	client Client
}

// Dial connects to the given JSON-RPC endpoint and wraps it as a
// chain.Adapter.
func Dial(ctx context.Context, rawurl string) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("rpcadapter: dial %s: %w", rawurl, err)
	}
	return New(client), nil
}

// New wraps an existing client as a chain.Adapter.
func New(client Client) *Adapter {
	return &Adapter{client: client}
}

var _ chain.Adapter = (*Adapter)(nil)

// LatestBlock returns the current chain head as reported by the node.
func (a *Adapter) LatestBlock(ctx context.Context) (chain.LightBlock, error) {
	header, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return chain.LightBlock{}, err
	}
	n := header.Number.Uint64()
	h := header.Hash()
	return chain.LightBlock{Number: &n, Hash: &h}, nil
}

// BlockByNumber returns the header at n, or nil if the node reports the
// block does not (yet) exist.
func (a *Adapter) BlockByNumber(ctx context.Context, n uint64) (*types.Header, error) {
	header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(n))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return header, nil
}

// BlockByHash returns the header with the given hash, or nil if unknown.
func (a *Adapter) BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	header, err := a.client.HeaderByHash(ctx, hash)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return header, nil
}

// LoadFullBlock resolves header into a full block via its hash.
func (a *Adapter) LoadFullBlock(ctx context.Context, header *types.Header) (*types.Block, error) {
	return a.client.BlockByHash(ctx, header.Hash())
}

// Uncles returns block's uncle headers.
func (a *Adapter) Uncles(ctx context.Context, block *types.Block) ([]*types.Header, error) {
	return block.Uncles(), nil
}

func isNotFound(err error) bool {
	return err == ethereum.NotFound
}
