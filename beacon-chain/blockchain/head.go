package blockchain

import (
	"bytes"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// HeadChangeEvent is emitted whenever UpdateHead selects a new head root.
type HeadChangeEvent struct {
	Slot uint64
	Root forktypes.Root
}

// ReorgEvent is emitted when the new head is not a descendant of the
// previous head.
type ReorgEvent struct {
	OldHead        forktypes.Root
	NewHead        forktypes.Root
	CommonAncestor forktypes.Root
	Depth          uint64
}

// FinalizationEvent is emitted when the finalized checkpoint advances.
type FinalizationEvent struct {
	Checkpoint forktypes.Checkpoint
}

// UpdateHead re-runs the LMD-GHOST walk over current leaves and updates
// the DAG's head pointer. It returns the events produced (zero, one, or a
// HeadChange followed by a Reorg), which the caller (ConsensusManager) is
// responsible for publishing -- this method only computes, it never
// touches the event bus, keeping the DAG mutation and notification
// concerns separate per spec.md §5's "single logical mutator" rule.
func (d *ChainDAG) UpdateHead() []interface{} {
	d.mu.Lock()

	leaves := d.leaves()
	if len(leaves) == 0 {
		d.mu.Unlock()
		return nil
	}

	best := leaves[0]
	bestWeight := d.nodes[best].weight
	for _, l := range leaves[1:] {
		w := d.nodes[l].weight
		if w > bestWeight || (w == bestWeight && bytes.Compare(l[:], best[:]) < 0) {
			best = l
			bestWeight = w
		}
	}

	prevHead := d.head
	if best == prevHead {
		d.mu.Unlock()
		return nil
	}
	d.head = best
	newSlot := d.nodes[best].block.Slot
	// A zero prevHead means no head has been established yet (the
	// genesis->first-head transition): there is nothing to reorg from, so
	// this is always a plain HeadChange, never a Reorg.
	isGenesisTransition := prevHead == (forktypes.Root{})
	isDescendant := isGenesisTransition || d.isAncestorLocked(prevHead, best)
	var commonAncestor forktypes.Root
	var depth uint64
	if !isDescendant {
		commonAncestor = d.commonAncestorLocked(prevHead, best)
		depth = d.depthLocked(prevHead, commonAncestor)
	}
	d.mu.Unlock()

	headSlot.Set(float64(newSlot))

	events := []interface{}{HeadChangeEvent{Slot: newSlot, Root: best}}
	if !isDescendant {
		reorgsTotal.Inc()
		reorgDepth.Observe(float64(depth))
		events = append(events, ReorgEvent{
			OldHead:        prevHead,
			NewHead:        best,
			CommonAncestor: commonAncestor,
			Depth:          depth,
		})
	}
	return events
}

func (d *ChainDAG) commonAncestorLocked(a, b forktypes.Root) forktypes.Root {
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

func (d *ChainDAG) depthLocked(from, ancestor forktypes.Root) uint64 {
	var depth uint64
	cur := from
	for cur != ancestor {
		n, ok := d.nodes[cur]
		if !ok {
			break
		}
		cur = n.parent
		depth++
	}
	return depth
}
