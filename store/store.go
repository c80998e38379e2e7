// Package store defines the persistent-store and block-writer collaborators
// the indexer depends on, plus the entity-key shape used to address a
// block's stored representation.
package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/darwinia-network/graph-node/chain"
)

// BlockEntityType is the entity type name blocks are stored under.
const BlockEntityType = "Block"

// EntityKey addresses a single stored entity: a deployment id, an entity
// type, and an id unique within that type. Blocks are keyed by their
// 0x-prefixed hash.
type EntityKey struct {
	DeploymentID string
	EntityType   string
	ID           string
}

// BlockEntityKey builds the entity key for the block identified by hash
// within deploymentID.
func BlockEntityKey(deploymentID string, hash common.Hash) EntityKey {
	return EntityKey{
		DeploymentID: deploymentID,
		EntityType:   BlockEntityType,
		ID:           hash.Hex(),
	}
}

// Entity is the stored representation of a block. Parent holds the parent
// hash as a 0x-less lowercase hex string, per the wire format mandated by
// the store's ABI.
type Entity struct {
	Parent string
}

// ParentHash parses Parent into a 32-byte hash. It fails if Parent is empty,
// not valid hex, or not exactly 32 bytes — surfaced by callers as a store
// read inconsistency.
func (e Entity) ParentHash() (common.Hash, error) {
	s := strings.TrimPrefix(strings.ToLower(e.Parent), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("parent field %q is not valid hex: %w", e.Parent, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("parent field %q is not %d bytes", e.Parent, common.HashLength)
	}
	return common.BytesToHash(b), nil
}

// ParentEntityValue renders hash as the 0x-less lowercase hex string the
// store expects for a block entity's parent field.
func ParentEntityValue(hash common.Hash) string {
	return hex.EncodeToString(hash.Bytes())
}

// Store is the persistent-store collaborator. It is shared across
// concurrently-suspended indexer operations; implementations must be safe
// for concurrent use and must make RevertBlockOperations atomic.
type Store interface {
	// BlockPtr returns the local head for deploymentID, or nil if the
	// store holds no blocks for it yet.
	BlockPtr(ctx context.Context, deploymentID string) (*chain.BlockPointer, error)

	// Get returns the entity at key, or nil if it does not exist.
	Get(ctx context.Context, key EntityKey) (*Entity, error)

	// RevertBlockOperations atomically moves deploymentID's tip from
	// "from" to "to". On success the store tip equals "to"; on failure
	// the store is left unchanged.
	RevertBlockOperations(ctx context.Context, deploymentID string, from, to chain.BlockPointer) error
}

// BlockWriter durably persists a fully-loaded block. Write is atomic: on
// success the block is indexed and becomes the store tip for its
// deployment.
type BlockWriter interface {
	Write(ctx context.Context, deploymentID string, block *chain.BlockWithUncles) error
}
