package blockchain

import (
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/stretchr/testify/require"
)

func TestUpdateHead_SelectsHeaviestLeaf(t *testing.T) {
	genesis := &forktypes.BeaconBlock{Root: forktypes.Root{0}, Slot: 0}
	d := NewChainDAG(genesis)

	a := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 1, ParentRoot: genesis.Root}
	b := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 1, ParentRoot: genesis.Root}
	require.NoError(t, d.InsertBlock(a))
	require.NoError(t, d.InsertBlock(b))

	d.AddWeight(a.Root, 10)
	d.AddWeight(b.Root, 20)

	events := d.UpdateHead()
	require.Len(t, events, 1)
	change, ok := events[0].(HeadChangeEvent)
	require.True(t, ok)
	require.Equal(t, b.Root, change.Root)
	require.Equal(t, b.Root, d.HeadRoot())
}

func TestUpdateHead_TieBreaksByLowerRoot(t *testing.T) {
	genesis := &forktypes.BeaconBlock{Root: forktypes.Root{0}, Slot: 0}
	d := NewChainDAG(genesis)

	a := &forktypes.BeaconBlock{Root: forktypes.Root{9}, Slot: 1, ParentRoot: genesis.Root}
	b := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 1, ParentRoot: genesis.Root}
	require.NoError(t, d.InsertBlock(a))
	require.NoError(t, d.InsertBlock(b))
	d.AddWeight(a.Root, 5)
	d.AddWeight(b.Root, 5)

	d.UpdateHead()
	require.Equal(t, b.Root, d.HeadRoot())
}

func TestUpdateHead_EmitsReorgOnNonDescendantSwitch(t *testing.T) {
	genesis := &forktypes.BeaconBlock{Root: forktypes.Root{0}, Slot: 0}
	d := NewChainDAG(genesis)

	a := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 1, ParentRoot: genesis.Root}
	b := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 1, ParentRoot: genesis.Root}
	require.NoError(t, d.InsertBlock(a))
	require.NoError(t, d.InsertBlock(b))

	d.AddWeight(a.Root, 10)
	d.UpdateHead()
	require.Equal(t, a.Root, d.HeadRoot())

	d.AddWeight(b.Root, 20)
	events := d.UpdateHead()
	require.Len(t, events, 2)
	_, isHeadChange := events[0].(HeadChangeEvent)
	require.True(t, isHeadChange)
	reorg, isReorg := events[1].(ReorgEvent)
	require.True(t, isReorg)
	require.Equal(t, a.Root, reorg.OldHead)
	require.Equal(t, b.Root, reorg.NewHead)
	require.Equal(t, genesis.Root, reorg.CommonAncestor)
	require.Equal(t, uint64(1), reorg.Depth)
}

func TestUpdateHead_NoChangeWhenHeadUnchanged(t *testing.T) {
	genesis := &forktypes.BeaconBlock{Root: forktypes.Root{0}, Slot: 0}
	d := NewChainDAG(genesis)
	require.Empty(t, d.UpdateHead())
}
