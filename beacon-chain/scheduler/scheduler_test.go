package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/stretchr/testify/require"
)

func noopConfig() Config {
	return Config{
		GenesisTime:                       time.Now().Add(-time.Hour),
		HistoryMode:                       HistoryPrune,
		UpdateHead:                        func(uint64) {},
		DispatchDuties:                    func(uint64, uint64) {},
		FinalizationAdvanced:              func() bool { return false },
		SlashingProtectionPrune:           func() {},
		PruneStateCachesAndForkChoice:     func() {},
		PruneHistory:                      func() {},
		PruneBlobs:                        func(uint64) {},
		GCHint:                            func() {},
		DBCheckpoint:                      func() {},
		PruneSyncCommitteePool:            func() {},
		PruneFeeRecipients:                func() {},
		SyncedAndExecutionValid:           func() bool { return true },
		MaybeUpdateActionTrackerNextEpoch: func(uint64) {},
		AdvanceClearanceState:             func() {},
		ActionTrackerUpdateSlot:           func(uint64) {},
		UpdateSyncCommitteeTopics:         func(uint64) {},
		UpdateGossipStatus:                func(uint64) {},
		CurrentSyncedEpoch:                func() uint64 { return 0 },
	}
}

func TestOnSlotEnd_RunsStepsInOrder(t *testing.T) {
	cfg := params.MinimalConfig().Copy()
	cfg.SlotsPerEpoch = 4
	cfg.SecondsPerSlot = 1
	cfg.AggregateSlotOffset = 0
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	var mu sync.Mutex
	var order []string
	record := func(name string) { mu.Lock(); order = append(order, name); mu.Unlock() }

	c := noopConfig()
	c.FinalizationAdvanced = func() bool { record("finalizationAdvanced"); return true }
	c.SlashingProtectionPrune = func() { record("slashingPrune") }
	c.PruneStateCachesAndForkChoice = func() { record("pruneStateCaches") }
	c.PruneHistory = func() { record("pruneHistory") }
	c.PruneBlobs = func(uint64) { record("pruneBlobs") }
	c.GCHint = func() { record("gcHint") }
	c.DBCheckpoint = func() { record("dbCheckpoint") }
	c.PruneSyncCommitteePool = func() { record("pruneSyncCommitteePool") }
	c.SyncedAndExecutionValid = func() bool { record("syncedCheck"); return true }
	c.MaybeUpdateActionTrackerNextEpoch = func(uint64) { record("maybeUpdateActionTracker") }
	c.AdvanceClearanceState = func() { record("advanceClearance") }
	c.ActionTrackerUpdateSlot = func(uint64) { record("actionTrackerUpdateSlot") }
	c.UpdateSyncCommitteeTopics = func(uint64) { record("updateSyncCommitteeTopics") }
	c.UpdateGossipStatus = func(uint64) { record("updateGossipStatus") }

	s := New(context.Background(), c)
	// slot 1 -> slot+1=2 is not an epoch boundary (4 slots/epoch), so
	// pruneHistory/pruneBlobs run.
	s.onSlotEnd(1)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"finalizationAdvanced",
		"slashingPrune",
		"pruneStateCaches",
		"pruneHistory",
		"gcHint",
		"dbCheckpoint",
		"pruneSyncCommitteePool",
		"syncedCheck",
		"maybeUpdateActionTracker",
		"advanceClearance",
		"actionTrackerUpdateSlot",
		"updateSyncCommitteeTopics",
		"updateGossipStatus",
	}, order)
}

func TestOnSlotEnd_SkipsHistoryPruneOnEpochBoundary(t *testing.T) {
	cfg := params.MinimalConfig().Copy()
	cfg.SlotsPerEpoch = 4
	cfg.SecondsPerSlot = 1
	cfg.AggregateSlotOffset = 0
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	called := false
	c := noopConfig()
	c.PruneHistory = func() { called = true }

	s := New(context.Background(), c)
	// slot 3 -> slot+1=4 IS an epoch boundary: history pruning skipped.
	s.onSlotEnd(3)
	require.False(t, called)
}

func TestOnSlotEnd_SkipsFeeRecipientPruneOffEpochBoundary(t *testing.T) {
	cfg := params.MinimalConfig().Copy()
	cfg.SlotsPerEpoch = 4
	cfg.SecondsPerSlot = 1
	cfg.AggregateSlotOffset = 0
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	called := false
	c := noopConfig()
	c.PruneFeeRecipients = func() { called = true }

	s := New(context.Background(), c)
	s.onSlotEnd(1) // slot 1 is not itself an epoch boundary
	require.False(t, called)
}

func TestMaybePruneBlobs_RespectsDenebAndEpochBoundary(t *testing.T) {
	cfg := params.MinimalConfig().Copy()
	cfg.SlotsPerEpoch = 4
	cfg.DenebForkEpoch = 2
	cfg.MinEpochsForBlobSidecarsRequests = 1
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	var cutoffs []uint64
	c := noopConfig()
	c.PruneBlobs = func(cutoff uint64) { cutoffs = append(cutoffs, cutoff) }
	s := New(context.Background(), c)

	// slot 16 = epoch 4, epoch boundary; cutoff = 4-1-1=2, equals DenebForkEpoch: runs.
	s.maybePruneBlobs(16, 4)
	require.Equal(t, []uint64{2}, cutoffs)

	// Not an epoch boundary: skipped.
	s.maybePruneBlobs(17, 4)
	require.Equal(t, []uint64{2}, cutoffs)
}
