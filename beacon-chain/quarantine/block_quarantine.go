// BlockQuarantine, grounded on the teacher's
// beacon-chain/sync/pending_blocks_queue.go: a root-keyed map of blocks
// whose parent (or, here, whose blobs) are not yet available, replayed by
// RequestManager/BlockProcessor on arrival of the missing dependency.
package quarantine

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// ErrUnviableFork is returned when a quarantined block's slot falls at or
// before the finalized slot -- it can never become canonical.
var ErrUnviableFork = errors.New("block slot at or before finalized checkpoint")

// ErrQuarantineFull is returned when the quarantine has no room and the
// caller should retry later rather than block.
var ErrQuarantineFull = errors.New("block quarantine is full")

// pendingBlock is a quarantined block plus why it's waiting: a missing
// parent, missing blobs ("blobless"), or both.
type pendingBlock struct {
	block       *forktypes.BeaconBlock
	blobless    bool
}

// BlockQuarantine holds blocks pending a missing parent or missing blobs,
// per spec.md §4.2.
type BlockQuarantine struct {
	mu             sync.Mutex
	byRoot         map[forktypes.Root]*pendingBlock
	byParentRoot   map[forktypes.Root][]forktypes.Root
	capacity       int
}

// NewBlockQuarantine returns a quarantine bounded to capacity entries.
func NewBlockQuarantine(capacity int) *BlockQuarantine {
	return &BlockQuarantine{
		byRoot:       make(map[forktypes.Root]*pendingBlock),
		byParentRoot: make(map[forktypes.Root][]forktypes.Root),
		capacity:     capacity,
	}
}

// Add quarantines block given the chain's current finalized slot. Returns
// ErrUnviableFork if the block can never become canonical, or
// ErrQuarantineFull if there is no room and the caller should retry later.
func (q *BlockQuarantine) Add(finalizedSlot uint64, block *forktypes.BeaconBlock, blobless bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if finalizedSlot > 0 && block.Slot <= finalizedSlot {
		return ErrUnviableFork
	}
	if _, exists := q.byRoot[block.Root]; exists {
		return nil
	}
	if len(q.byRoot) >= q.capacity {
		q.evictOldestLocked()
		if len(q.byRoot) >= q.capacity {
			return ErrQuarantineFull
		}
	}
	q.byRoot[block.Root] = &pendingBlock{block: block, blobless: blobless}
	q.byParentRoot[block.ParentRoot] = append(q.byParentRoot[block.ParentRoot], block.Root)
	return nil
}

// evictOldestLocked drops the lowest-slot quarantined block, favouring
// eviction of the oldest entry as spec.md §4.2 requires. Caller holds mu.
func (q *BlockQuarantine) evictOldestLocked() {
	var oldestRoot forktypes.Root
	oldestSlot := ^uint64(0)
	found := false
	for root, pb := range q.byRoot {
		if !found || pb.block.Slot < oldestSlot {
			oldestRoot = root
			oldestSlot = pb.block.Slot
			found = true
		}
	}
	if found {
		q.removeLocked(oldestRoot)
	}
}

func (q *BlockQuarantine) removeLocked(root forktypes.Root) {
	pb, ok := q.byRoot[root]
	if !ok {
		return
	}
	delete(q.byRoot, root)
	children := q.byParentRoot[pb.block.ParentRoot]
	for i, c := range children {
		if c == root {
			q.byParentRoot[pb.block.ParentRoot] = append(children[:i], children[i+1:]...)
			break
		}
	}
}

// Remove drops root from the quarantine, e.g. once BlockProcessor has
// accepted it.
func (q *BlockQuarantine) Remove(root forktypes.Root) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(root)
}

// ByParentRoot returns quarantined blocks waiting on parentRoot, ordered by
// slot, so RequestManager/BlockProcessor can retry them once parentRoot
// arrives.
func (q *BlockQuarantine) ByParentRoot(parentRoot forktypes.Root) []*forktypes.BeaconBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	children := q.byParentRoot[parentRoot]
	out := make([]*forktypes.BeaconBlock, 0, len(children))
	for _, root := range children {
		if pb, ok := q.byRoot[root]; ok {
			out = append(out, pb.block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Blobless returns every quarantined block still waiting on blobs, sorted
// by slot, for RequestManager's blob-gap sweep.
func (q *BlockQuarantine) Blobless() []*forktypes.BeaconBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*forktypes.BeaconBlock
	for _, pb := range q.byRoot {
		if pb.blobless {
			out = append(out, pb.block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// PruneFinalized removes every quarantined block at or before
// finalizedSlot, the same "don't process old blocks" sweep the teacher's
// sortedPendingSlots performs inline.
func (q *BlockQuarantine) PruneFinalized(finalizedSlot uint64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pruned := 0
	for root, pb := range q.byRoot {
		if finalizedSlot > 0 && pb.block.Slot <= finalizedSlot {
			q.removeLocked(root)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of quarantined blocks.
func (q *BlockQuarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byRoot)
}
