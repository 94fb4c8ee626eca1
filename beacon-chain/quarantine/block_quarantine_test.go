package quarantine

import (
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/stretchr/testify/require"
)

func TestBlockQuarantine_RejectsUnviableFork(t *testing.T) {
	q := NewBlockQuarantine(10)
	block := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 50}
	err := q.Add(100, block, false)
	require.ErrorIs(t, err, ErrUnviableFork)
}

func TestBlockQuarantine_FullEvictsOldestToMakeRoom(t *testing.T) {
	q := NewBlockQuarantine(1)
	first := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 10, ParentRoot: forktypes.Root{0}}
	second := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 10, ParentRoot: forktypes.Root{0}}

	require.NoError(t, q.Add(0, first, false))
	// Capacity 1: eviction makes room for the newest, so this still succeeds.
	require.NoError(t, q.Add(0, second, false))
	require.Equal(t, 1, q.Len())
}

func TestBlockQuarantine_ByParentRootRetrySortedBySlot(t *testing.T) {
	q := NewBlockQuarantine(10)
	parent := forktypes.Root{9}
	b1 := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 20, ParentRoot: parent}
	b2 := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 10, ParentRoot: parent}

	require.NoError(t, q.Add(0, b1, false))
	require.NoError(t, q.Add(0, b2, false))

	children := q.ByParentRoot(parent)
	require.Len(t, children, 2)
	require.Equal(t, uint64(10), children[0].Slot)
	require.Equal(t, uint64(20), children[1].Slot)
}

func TestBlockQuarantine_BloblessTracked(t *testing.T) {
	q := NewBlockQuarantine(10)
	block := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 5}
	require.NoError(t, q.Add(0, block, true))

	blobless := q.Blobless()
	require.Len(t, blobless, 1)
	require.Equal(t, block.Root, blobless[0].Root)
}

func TestBlockQuarantine_PruneFinalized(t *testing.T) {
	q := NewBlockQuarantine(10)
	old := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 5}
	fresh := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 500}
	require.NoError(t, q.Add(0, old, false))
	require.NoError(t, q.Add(0, fresh, false))

	pruned := q.PruneFinalized(100)
	require.Equal(t, 1, pruned)
	require.Equal(t, 1, q.Len())
}
