package blockchain

import (
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/stretchr/testify/require"
)

// firstProposerIdx is the validator index every test below designates as
// next epoch's first proposer, the sole validator stableLocked inspects.
const firstProposerIdx = 0

func stableStatuses() map[uint64]ValidatorStatus {
	return map[uint64]ValidatorStatus{
		0: {EffectiveBalance: 32_000_000_000, ParticipationFlag: TimelySourceFlag | TimelyTargetFlag, Active: true},
		1: {EffectiveBalance: 32_000_000_000, ParticipationFlag: TimelySourceFlag | TimelyTargetFlag, Active: true},
	}
}

func TestActionTracker_FallsBackOnFirstEpoch(t *testing.T) {
	calls := 0
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		calls++
		return &EpochRef{Epoch: epoch}, nil
	})
	require.NoError(t, tracker.UpdateSlot(0, stableStatuses(), firstProposerIdx, params.Altair))
	require.Equal(t, 1, calls)
}

func TestActionTracker_FastPathWhenStableAndShufflingReady(t *testing.T) {
	calls := 0
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		calls++
		return &EpochRef{Epoch: epoch, SyncCommittee: []uint64{1, 2, 3}}, nil
	})
	cfg := params.BeaconConfig()
	slotsPerEpoch := cfg.SlotsPerEpoch

	// Start at epoch 1: the stability predicate refuses the fast path while
	// the tracker's current epoch is the genesis epoch.
	require.NoError(t, tracker.UpdateSlot(slotsPerEpoch, stableStatuses(), firstProposerIdx, params.Altair))
	require.Equal(t, 1, calls)

	tracker.MarkShufflingReady(2)
	require.NoError(t, tracker.UpdateSlot(2*slotsPerEpoch, stableStatuses(), firstProposerIdx, params.Altair))
	require.Equal(t, 1, calls, "fast path should not invoke recompute")

	ref, ok := tracker.EpochRefFor(2)
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2, 3}, ref.SyncCommittee)
}

func TestActionTracker_FallsBackWhenBalanceOutsideHysteresis(t *testing.T) {
	calls := 0
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		calls++
		return &EpochRef{Epoch: epoch}, nil
	})
	cfg := params.BeaconConfig()
	slotsPerEpoch := cfg.SlotsPerEpoch

	require.NoError(t, tracker.UpdateSlot(0, stableStatuses(), firstProposerIdx, params.Altair))
	tracker.MarkShufflingReady(1)

	moved := stableStatuses()
	moved[firstProposerIdx] = ValidatorStatus{EffectiveBalance: 20_000_000_000, ParticipationFlag: TimelySourceFlag | TimelyTargetFlag, Active: true}
	require.NoError(t, tracker.UpdateSlot(slotsPerEpoch, moved, firstProposerIdx, params.Altair))
	require.Equal(t, 2, calls, "large balance swing should force fallback")
}

func TestActionTracker_FallsBackWhenInactivityScoreNonzero(t *testing.T) {
	calls := 0
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		calls++
		return &EpochRef{Epoch: epoch}, nil
	})
	cfg := params.BeaconConfig()
	slotsPerEpoch := cfg.SlotsPerEpoch

	require.NoError(t, tracker.UpdateSlot(0, stableStatuses(), firstProposerIdx, params.Altair))
	tracker.MarkShufflingReady(1)

	flagged := stableStatuses()
	flagged[firstProposerIdx] = ValidatorStatus{EffectiveBalance: 32_000_000_000, ParticipationFlag: TimelySourceFlag | TimelyTargetFlag, InactivityScore: 1, Active: true}
	require.NoError(t, tracker.UpdateSlot(slotsPerEpoch, flagged, firstProposerIdx, params.Altair))
	require.Equal(t, 2, calls, "nonzero inactivity score forces fallback")
}

func TestActionTracker_FallsBackBeforeAltair(t *testing.T) {
	calls := 0
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		calls++
		return &EpochRef{Epoch: epoch}, nil
	})
	cfg := params.BeaconConfig()
	slotsPerEpoch := cfg.SlotsPerEpoch

	require.NoError(t, tracker.UpdateSlot(0, stableStatuses(), firstProposerIdx, params.Phase0))
	tracker.MarkShufflingReady(1)
	require.NoError(t, tracker.UpdateSlot(slotsPerEpoch, stableStatuses(), firstProposerIdx, params.Phase0))
	require.Equal(t, 2, calls)
}

func TestActionTracker_PruneBefore(t *testing.T) {
	tracker := NewActionTracker(func(epoch uint64) (*EpochRef, error) {
		return &EpochRef{Epoch: epoch}, nil
	})
	require.NoError(t, tracker.UpdateSlot(0, stableStatuses(), firstProposerIdx, params.Altair))
	tracker.PruneBefore(1)
	_, ok := tracker.EpochRefFor(0)
	require.False(t, ok)
}
