// Package db implements the beacon node's persisted backing store: blocks
// keyed by root, the finalized checkpoint, and periodic checkpoint/prune
// hooks the SlotScheduler drives at the end of every slot. A second store,
// SlashingProtectionStore, backs the DutyDispatcher's slashing-protection
// guard.
package db

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// errBlockNotFound is returned by Block when root is unknown to the store.
var errBlockNotFound = errors.New("block not found")

// Store is the ChainDB: a root-keyed block store fronted by a ristretto
// cache, the same two-tier shape the teacher's kv.Store uses over its
// boltDB buckets.
type Store struct {
	mu     sync.RWMutex
	blocks map[forktypes.Root]*forktypes.BeaconBlock

	cache *ristretto.Cache

	finalized forktypes.Checkpoint
}

// blockCacheMaxCost bounds the ristretto cache's tracked cost, mirroring
// the teacher's BlockCacheSize constant.
const blockCacheMaxCost = 1 << 20

// NewStore opens a Store seeded with genesis, stored under its own root,
// when genesis is non-nil.
func NewStore(genesis *forktypes.BeaconBlock) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     blockCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize block cache")
	}
	s := &Store{
		blocks: make(map[forktypes.Root]*forktypes.BeaconBlock),
		cache:  cache,
	}
	if genesis != nil {
		s.blocks[genesis.Root] = genesis
		s.cache.Set(genesis.Root, genesis, 1)
	}
	return s, nil
}

// SaveBlock persists block, keyed by its root.
func (s *Store) SaveBlock(block *forktypes.BeaconBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[block.Root] = block
	s.cache.Set(block.Root, block, 1)
	return nil
}

// Block returns the block stored under root, checking the cache first.
func (s *Store) Block(root forktypes.Root) (*forktypes.BeaconBlock, error) {
	if v, ok := s.cache.Get(root); ok {
		blockCacheHits.Inc()
		return v.(*forktypes.BeaconBlock), nil
	}
	blockCacheMisses.Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.blocks[root]
	if !ok {
		return nil, errBlockNotFound
	}
	s.cache.Set(root, block, 1)
	return block, nil
}

// SaveFinalizedCheckpoint records the node's current finalized checkpoint.
func (s *Store) SaveFinalizedCheckpoint(cp forktypes.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = cp
}

// FinalizedCheckpoint returns the persisted finalized checkpoint.
func (s *Store) FinalizedCheckpoint() forktypes.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// Checkpoint is the SlotScheduler's DBCheckpoint hook: a point where a real
// boltDB-backed store would force a durability sync. Here it flushes the
// cache's pending writes so metrics and state stay consistent across a
// restart boundary.
func (s *Store) Checkpoint() {
	s.cache.Wait()
	checkpointsWritten.Inc()
}

// PruneHistory drops every block before beforeSlot, other than the
// finalized checkpoint's own root, returning the count removed. Called by
// the SlotScheduler's PruneHistory hook when HistoryMode is HistoryPrune.
func (s *Store) PruneHistory(beforeSlot uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for root, block := range s.blocks {
		if block.Slot < beforeSlot && root != s.finalized.Root {
			delete(s.blocks, root)
			s.cache.Del(root)
			removed++
		}
	}
	return removed
}

// Close releases the store's cache resources.
func (s *Store) Close() error {
	s.cache.Close()
	return nil
}
