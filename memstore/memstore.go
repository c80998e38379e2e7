// Package memstore is an in-memory store.Store and store.BlockWriter
// implementation, the bootstrap default cmd/networkindexer uses when no
// durable backend is configured. It follows the key-value accessor shape
// the teacher's rawdb package uses for its on-disk tables, backed by a
// mutex-guarded map instead of a real database.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/darwinia-network/graph-node/chain"
	"github.com/darwinia-network/graph-node/store"
)

// Store is a concurrency-safe, process-local implementation of
// store.Store and store.BlockWriter. It does not persist across restarts.
type Store struct {
	mu       sync.Mutex
	heads    map[string]chain.BlockPointer
	hasHead  map[string]bool
	entities map[store.EntityKey]store.Entity
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		heads:    make(map[string]chain.BlockPointer),
		hasHead:  make(map[string]bool),
		entities: make(map[store.EntityKey]store.Entity),
	}
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.BlockWriter = (*Store)(nil)
)

// BlockPtr returns the current local head for deploymentID.
func (s *Store) BlockPtr(ctx context.Context, deploymentID string) (*chain.BlockPointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasHead[deploymentID] {
		return nil, nil
	}
	p := s.heads[deploymentID]
	return &p, nil
}

// Get returns the entity stored at key, or nil if absent.
func (s *Store) Get(ctx context.Context, key store.EntityKey) (*store.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// RevertBlockOperations atomically moves deploymentID's head from "from" to
// "to", failing if the current head does not match "from" exactly.
func (s *Store) RevertBlockOperations(ctx context.Context, deploymentID string, from, to chain.BlockPointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasHead[deploymentID] || s.heads[deploymentID] != from {
		return fmt.Errorf("memstore: revert precondition failed: head is not %s", from)
	}
	s.heads[deploymentID] = to
	return nil
}

// Write durably persists block as deploymentID's new tip.
func (s *Store) Write(ctx context.Context, deploymentID string, block *chain.BlockWithUncles) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := block.Pointer()
	key := store.BlockEntityKey(deploymentID, p.Hash)
	s.entities[key] = store.Entity{Parent: store.ParentEntityValue(block.ParentHash)}
	s.heads[deploymentID] = p
	s.hasHead[deploymentID] = true
	return nil
}
