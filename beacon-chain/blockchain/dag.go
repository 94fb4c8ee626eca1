package blockchain

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// ErrUnknownParent is returned when a block links to a parent root not
// present in the DAG.
var ErrUnknownParent = errors.New("parent block not found in chain dag")

// dagNode is one arena entry: a block plus its parent/children handles.
// Per spec.md's DESIGN NOTES, the tree is an arena of nodes indexed by
// root, with parent stored as a root (handle) and children as a slice of
// roots, avoiding cyclic owning references.
type dagNode struct {
	block    *forktypes.BeaconBlock
	parent   forktypes.Root
	children []forktypes.Root
	weight   uint64 // accumulated LMD-GHOST attestation weight
}

// ChainDAG is the in-memory block tree: the ChainDAG surface spec.md
// describes as external-but-consulted. It holds every non-finalized block
// plus the head/finalized/backfill pointers the rest of the orchestrator
// reads as snapshots.
type ChainDAG struct {
	mu        sync.RWMutex
	nodes     map[forktypes.Root]*dagNode
	head      forktypes.Root
	finalized forktypes.Checkpoint
	backfill  uint64 // lowest slot reachable by backward sync
	genesis   forktypes.Root
}

// NewChainDAG returns a DAG seeded with only the genesis block.
func NewChainDAG(genesis *forktypes.BeaconBlock) *ChainDAG {
	d := &ChainDAG{
		nodes:   make(map[forktypes.Root]*dagNode),
		head:    genesis.Root,
		genesis: genesis.Root,
	}
	d.nodes[genesis.Root] = &dagNode{block: genesis}
	return d
}

// InsertBlock links block into the DAG under its parent. Returns
// ErrUnknownParent unless block is genesis or its parent is already
// present -- callers (BlockProcessor) are responsible for quarantining
// orphans rather than calling InsertBlock for them.
func (d *ChainDAG) InsertBlock(block *forktypes.BeaconBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if block.Root != d.genesis {
		if _, ok := d.nodes[block.ParentRoot]; !ok {
			return ErrUnknownParent
		}
	}
	if _, exists := d.nodes[block.Root]; exists {
		return nil
	}
	d.nodes[block.Root] = &dagNode{block: block, parent: block.ParentRoot}
	if parent, ok := d.nodes[block.ParentRoot]; ok {
		parent.children = append(parent.children, block.Root)
	}
	return nil
}

// AddWeight accumulates LMD-GHOST attestation weight onto root, used by
// UpdateHead's fork-choice walk.
func (d *ChainDAG) AddWeight(root forktypes.Root, weight uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[root]; ok {
		n.weight += weight
	}
}

// HeadRoot returns the current canonical head root.
func (d *ChainDAG) HeadRoot() forktypes.Root {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.head
}

// HeadSlot returns the slot of the current canonical head.
func (d *ChainDAG) HeadSlot() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n, ok := d.nodes[d.head]; ok {
		return n.block.Slot
	}
	return 0
}

// FinalizedCheckpoint returns the latest finalized checkpoint.
func (d *ChainDAG) FinalizedCheckpoint() forktypes.Checkpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.finalized
}

// SetFinalized records cp as the finalized checkpoint. It removes no
// blocks; PruneFinalized drops the blocks that do not descend from it.
func (d *ChainDAG) SetFinalized(cp forktypes.Checkpoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finalized = cp
}

// Block returns the block stored at root, if any.
func (d *ChainDAG) Block(root forktypes.Root) (*forktypes.BeaconBlock, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[root]
	if !ok {
		return nil, false
	}
	return n.block, true
}

// IsAncestor reports whether ancestor is a strict or reflexive ancestor of
// descendant, walking parent links. Bounded by the size of the DAG since
// finalized blocks are pruned.
func (d *ChainDAG) IsAncestor(ancestor, descendant forktypes.Root) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cur := descendant
	for {
		if cur == ancestor {
			return true
		}
		n, ok := d.nodes[cur]
		if !ok || cur == d.genesis {
			return cur == ancestor
		}
		cur = n.parent
	}
}

// CommonAncestor walks both chains back to their first shared root, for
// reorg-event reporting.
func (d *ChainDAG) CommonAncestor(a, b forktypes.Root) forktypes.Root {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := map[forktypes.Root]bool{}
	cur := a
	for {
		seen[cur] = true
		n, ok := d.nodes[cur]
		if !ok || cur == d.genesis {
			break
		}
		cur = n.parent
	}
	cur = b
	for {
		if seen[cur] {
			return cur
		}
		n, ok := d.nodes[cur]
		if !ok || cur == d.genesis {
			return d.genesis
		}
		cur = n.parent
	}
}

// leaves returns every block root with no recorded children -- candidate
// heads for the fork-choice walk.
func (d *ChainDAG) leaves() []forktypes.Root {
	var out []forktypes.Root
	childSet := make(map[forktypes.Root]bool, len(d.nodes))
	for _, n := range d.nodes {
		childSet[n.parent] = true
	}
	for root := range d.nodes {
		if !childSet[root] {
			out = append(out, root)
		}
	}
	return out
}

// PruneFinalized drops every node that is not a descendant of the current
// finalized checkpoint, the "needStateCachesAndForkChoicePruning" trigger
// from spec.md §4.4 acting on the DAG itself.
func (d *ChainDAG) PruneFinalized() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	finalizedRoot := d.finalized.Root
	if finalizedRoot == (forktypes.Root{}) {
		return 0
	}
	pruned := 0
	for root := range d.nodes {
		if root == finalizedRoot {
			continue
		}
		if !d.isAncestorLocked(finalizedRoot, root) {
			delete(d.nodes, root)
			pruned++
		}
	}
	if pruned > 0 {
		dagNodesPruned.Add(float64(pruned))
	}
	return pruned
}

func (d *ChainDAG) isAncestorLocked(ancestor, descendant forktypes.Root) bool {
	cur := descendant
	for {
		if cur == ancestor {
			return true
		}
		n, ok := d.nodes[cur]
		if !ok || cur == d.genesis {
			return false
		}
		cur = n.parent
	}
}
