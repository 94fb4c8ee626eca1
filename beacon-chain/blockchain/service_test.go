package blockchain

import (
	"context"
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) (*Service, *forktypes.BeaconBlock) {
	genesis := &forktypes.BeaconBlock{Root: forktypes.Root{0}, Slot: 0}
	svc := NewService(context.Background(), &Config{
		Genesis: genesis,
		Recompute: func(epoch uint64) (*EpochRef, error) {
			return &EpochRef{Epoch: epoch}, nil
		},
	})
	t.Cleanup(func() { require.NoError(t, svc.Stop()) })
	return svc, genesis
}

func TestService_ReceiveBlockPublishesHeadChange(t *testing.T) {
	svc, genesis := testService(t)

	ch := make(chan HeadChangeEvent, 1)
	sub := svc.HeadFeed().Subscribe(ch)
	defer sub.Unsubscribe()

	block := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 1, ParentRoot: genesis.Root}
	require.NoError(t, svc.ReceiveBlock(block))

	select {
	case evt := <-ch:
		require.Equal(t, block.Root, evt.Root)
	default:
		t.Fatal("expected HeadChangeEvent to be published")
	}
}

func TestService_SetFinalizedPublishesAndPrunes(t *testing.T) {
	svc, genesis := testService(t)

	ch := make(chan FinalizationEvent, 1)
	sub := svc.FinalizationFeed().Subscribe(ch)
	defer sub.Unsubscribe()

	kept := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 1, ParentRoot: genesis.Root}
	stale := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 2, ParentRoot: genesis.Root}
	require.NoError(t, svc.ReceiveBlock(kept))
	require.NoError(t, svc.ReceiveBlock(stale))

	cp := forktypes.Checkpoint{Epoch: 1, Root: kept.Root}
	svc.SetFinalized(cp)

	select {
	case evt := <-ch:
		require.Equal(t, cp, evt.Checkpoint)
	default:
		t.Fatal("expected FinalizationEvent to be published")
	}

	_, ok := svc.DAG().Block(kept.Root)
	require.True(t, ok, "finalized block stays in the DAG")
	_, ok = svc.DAG().Block(stale.Root)
	require.False(t, ok, "non-descendant of the finalized block is pruned")
}

func TestService_ReceiveBlockRejectsUnknownParent(t *testing.T) {
	svc, _ := testService(t)
	orphan := &forktypes.BeaconBlock{Root: forktypes.Root{5}, Slot: 1, ParentRoot: forktypes.Root{123}}
	require.ErrorIs(t, svc.ReceiveBlock(orphan), ErrUnknownParent)
}
