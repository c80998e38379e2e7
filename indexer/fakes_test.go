package indexer_test

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/store"
)

// fakeAdapter is an in-memory chain.Adapter for exercising the indexer
// state machine end to end, without a real RPC client.
type fakeAdapter struct {
	mu sync.Mutex

	byNumber map[uint64]*types.Header
	byHash   map[common.Hash]*types.Header

	// numberFailures counts down; while positive, BlockByNumber(n) returns
	// the configured error instead of the header.
	numberFailures map[uint64]int
	numberErr      map[uint64]error

	latest chain.LightBlock
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		byNumber:       make(map[uint64]*types.Header),
		byHash:         make(map[common.Hash]*types.Header),
		numberFailures: make(map[uint64]int),
		numberErr:      make(map[uint64]error),
	}
}

func makeHeader(number uint64, parent common.Hash, tag byte) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		ParentHash: parent,
		Extra:      []byte{tag},
		Difficulty: big.NewInt(1),
	}
}

func (f *fakeAdapter) add(h *types.Header) common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := h.Hash()
	f.byNumber[h.Number.Uint64()] = h
	f.byHash[hash] = h
	return hash
}

func (f *fakeAdapter) failNumberOnce(n uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numberFailures[n] = 1
	f.numberErr[n] = err
}

func (f *fakeAdapter) setLatest(p chain.BlockPointer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, h := p.Number, p.Hash
	f.latest = chain.LightBlock{Number: &n, Hash: &h}
}

func (f *fakeAdapter) LatestBlock(ctx context.Context) (chain.LightBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, nil
}

func (f *fakeAdapter) BlockByNumber(ctx context.Context, n uint64) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.numberFailures[n] > 0 {
		f.numberFailures[n]--
		return nil, f.numberErr[n]
	}
	return f.byNumber[n], nil
}

func (f *fakeAdapter) BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHash[hash], nil
}

func (f *fakeAdapter) LoadFullBlock(ctx context.Context, header *types.Header) (*types.Block, error) {
	return types.NewBlockWithHeader(header), nil
}

func (f *fakeAdapter) Uncles(ctx context.Context, block *types.Block) ([]*types.Header, error) {
	return nil, nil
}

var _ chain.Adapter = (*fakeAdapter)(nil)

// fakeStore is an in-memory store.Store and store.BlockWriter: both the
// persistent store and the block writer are implemented by the same
// in-memory map, since both ultimately touch the same deployment tip.
type fakeStore struct {
	mu sync.Mutex

	heads    map[string]*chain.BlockPointer
	entities map[store.EntityKey]store.Entity

	writeErr  map[chain.BlockPointer]error
	revertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		heads:    make(map[string]*chain.BlockPointer),
		entities: make(map[store.EntityKey]store.Entity),
		writeErr: make(map[chain.BlockPointer]error),
	}
}

func (s *fakeStore) seed(deploymentID string, head chain.BlockPointer, blocks ...struct {
	Pointer chain.BlockPointer
	Parent  common.Hash
}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := head
	s.heads[deploymentID] = &h
	for _, b := range blocks {
		s.entities[store.BlockEntityKey(deploymentID, b.Pointer.Hash)] = store.Entity{Parent: store.ParentEntityValue(b.Parent)}
	}
}

func (s *fakeStore) failWrite(p chain.BlockPointer, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr[p] = err
}

func (s *fakeStore) BlockPtr(ctx context.Context, deploymentID string) (*chain.BlockPointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads[deploymentID], nil
}

func (s *fakeStore) Get(ctx context.Context, key store.EntityKey) (*store.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *fakeStore) RevertBlockOperations(ctx context.Context, deploymentID string, from, to chain.BlockPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revertErr != nil {
		return s.revertErr
	}
	t := to
	s.heads[deploymentID] = &t
	return nil
}

func (s *fakeStore) Write(ctx context.Context, deploymentID string, block *chain.BlockWithUncles) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := block.Pointer()
	if err, ok := s.writeErr[p]; ok {
		return err
	}
	s.heads[deploymentID] = &p
	s.entities[store.BlockEntityKey(deploymentID, p.Hash)] = store.Entity{Parent: store.ParentEntityValue(block.ParentHash)}
	return nil
}

var (
	_ store.Store       = (*fakeStore)(nil)
	_ store.BlockWriter = (*fakeStore)(nil)
)
