// Package scheduler implements the C8 SlotScheduler: the wall-clock-driven
// slot loop and second loop that bind the rest of the orchestrator's
// components together. The slot loop runs its hooks one at a time on its
// own goroutine; the second loop runs on a separate goroutine and calls
// only CurrentSyncedEpoch and OnStop, which can therefore run concurrently
// with a slot-loop hook.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/roughtime"
)

// HistoryMode selects whether old states/blobs are pruned or archived.
type HistoryMode int

const (
	HistoryPrune HistoryMode = iota
	HistoryArchive
)

// Config bundles every hook the scheduler drives. Each is a narrow
// callback into a collaborator (ConsensusManager, DutyDispatcher,
// GossipController, ActionTracker, the chain DB) rather than a concrete
// dependency, keeping this package free of import-cycle risk across the
// component graph.
type Config struct {
	GenesisTime time.Time
	HistoryMode HistoryMode

	StopAtEpoch       uint64 // 0 disables the check
	StopAtSyncedEpoch uint64 // 0 disables the check

	UpdateHead     func(wallSlot uint64)
	DispatchDuties func(lastSlot, wallSlot uint64)

	FinalizationAdvanced    func() bool
	SlashingProtectionPrune func()
	PruneStateCachesAndForkChoice func()
	PruneHistory            func()
	PruneBlobs              func(cutoffEpoch uint64)
	GCHint                  func()
	DBCheckpoint            func()
	PruneSyncCommitteePool  func()
	PruneFeeRecipients      func()

	SyncedAndExecutionValid          func() bool
	MaybeUpdateActionTrackerNextEpoch func(epoch uint64)

	AdvanceClearanceState   func()
	ActionTrackerUpdateSlot func(slot uint64)
	UpdateSyncCommitteeTopics func(slot uint64)
	UpdateGossipStatus        func(slot uint64)

	CurrentSyncedEpoch func() uint64
	OnStop             func()
}

// Scheduler is the C8 SlotScheduler.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastSlot uint64
}

// New constructs a Scheduler. Call Start to begin its loops.
func New(ctx context.Context, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{ctx: ctx, cancel: cancel, cfg: cfg}
}

// Start satisfies shared/service.Service: launches the slot loop and the
// second loop as independent goroutines.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.runSlotLoop()
	go s.runSecondLoop()
}

// Stop satisfies shared/service.Service.
func (s *Scheduler) Stop() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) slotDuration() time.Duration {
	return time.Duration(params.BeaconConfig().SecondsPerSlot) * time.Second
}

func (s *Scheduler) slotStartTime(slot uint64) time.Time {
	return s.cfg.GenesisTime.Add(time.Duration(slot) * s.slotDuration())
}

func (s *Scheduler) currentSlot() uint64 {
	elapsed := roughtime.Since(s.cfg.GenesisTime)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / s.slotDuration())
}

// runSlotLoop sleeps until each slot boundary and drives onSlotStart, which
// in turn drives onSlotEnd before returning -- onSlotStart(s+1) is
// guaranteed not to begin before onSlotEnd(s) completes.
func (s *Scheduler) runSlotLoop() {
	defer s.wg.Done()
	for {
		next := s.currentSlot() + 1
		if !s.sleepUntil(s.slotStartTime(next)) {
			return
		}
		wallSlot := s.currentSlot()
		last := s.swapLastSlot(wallSlot)
		s.onSlotStart(wallSlot, last)

		if s.cfg.StopAtEpoch > 0 && wallSlot/params.BeaconConfig().SlotsPerEpoch >= s.cfg.StopAtEpoch {
			log.WithField("epoch", s.cfg.StopAtEpoch).Info("Reached stop-at-epoch, shutting down")
			if s.cfg.OnStop != nil {
				s.cfg.OnStop()
			}
			return
		}
	}
}

func (s *Scheduler) swapLastSlot(wallSlot uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.lastSlot
	s.lastSlot = wallSlot
	return last
}

// onSlotStart logs, updates head, dispatches duties, then runs onSlotEnd.
func (s *Scheduler) onSlotStart(wallSlot, lastSlot uint64) {
	slotGauge.Set(float64(wallSlot))
	log.WithField("slot", wallSlot).Debug("Slot start")

	s.cfg.UpdateHead(wallSlot)
	s.cfg.DispatchDuties(lastSlot, wallSlot)
	s.onSlotEnd(wallSlot)
}

// onSlotEnd runs the exact eleven-step ordering spec.md §4.8 requires.
func (s *Scheduler) onSlotEnd(slot uint64) {
	cfg := params.BeaconConfig()
	epoch := slot / cfg.SlotsPerEpoch

	// 1. Wait until duty propagation has had a chance to complete.
	remaining := s.slotStartTime(slot+1).Sub(roughtime.Now())
	cutoff := s.slotStartTime(slot).Add(cfg.AggregateSlotOffset + remaining/2)
	s.sleepUntil(cutoff)

	// 2. Slashing-protection pruning, only on finalization advance and
	// only in Prune mode.
	if s.cfg.FinalizationAdvanced() && s.cfg.HistoryMode == HistoryPrune {
		s.cfg.SlashingProtectionPrune()
	}

	// 3. State-cache / fork-choice pruning.
	s.cfg.PruneStateCachesAndForkChoice()

	// 4. History + blob pruning, Prune mode only, skipped on epoch
	// boundaries (the boundary's own epoch processing handles it).
	nextIsEpochBoundary := (slot+1)%cfg.SlotsPerEpoch == 0
	if s.cfg.HistoryMode == HistoryPrune && !nextIsEpochBoundary {
		s.cfg.PruneHistory()
		s.maybePruneBlobs(slot, epoch)
	}

	// 5. GC hint between slots.
	s.cfg.GCHint()

	// 6. DB checkpoint (flush WAL).
	s.cfg.DBCheckpoint()

	// 7. Sync-committee pool pruning; fee-recipient pruning only at an
	// epoch boundary.
	s.cfg.PruneSyncCommitteePool()
	if slot%cfg.SlotsPerEpoch == 0 {
		s.cfg.PruneFeeRecipients()
	}

	// 8. Prefetch next epoch's action tracker state, only if synced and
	// execution-valid.
	if s.cfg.SyncedAndExecutionValid() {
		s.cfg.MaybeUpdateActionTrackerNextEpoch(epoch + 1)
	}

	// 9. Sleep to the end-of-slot cutoff, then pre-stage next slot.
	s.sleepUntil(s.slotStartTime(slot).Add(time.Duration(cfg.SecondsPerSlot-1) * time.Second))
	s.cfg.AdvanceClearanceState()

	// 10. Advance the action tracker to the next slot.
	s.cfg.ActionTrackerUpdateSlot(slot + 1)

	// 11. Recompute sync-committee topics, then gossip status.
	s.cfg.UpdateSyncCommitteeTopics(slot + 1)
	s.cfg.UpdateGossipStatus(slot + 1)
}

// maybePruneBlobs calls PruneBlobs with the cutoff epoch spec.md §4.8
// defines, only when the resulting cutoff is at or after Deneb's
// activation and the current slot lands on an epoch boundary.
func (s *Scheduler) maybePruneBlobs(slot, epoch uint64) {
	cfg := params.BeaconConfig()
	if slot%cfg.SlotsPerEpoch != 0 {
		return
	}
	if epoch < cfg.MinEpochsForBlobSidecarsRequests+1 {
		return
	}
	cutoff := epoch - cfg.MinEpochsForBlobSidecarsRequests - 1
	if cutoff < cfg.DenebForkEpoch {
		return
	}
	s.cfg.PruneBlobs(cutoff)
}

// runSecondLoop ticks once a second: updates a thread-liveness gauge,
// checks stopAtSyncedEpoch, and records scheduling delay as a starvation
// signal.
func (s *Scheduler) runSecondLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		scheduled := roughtime.Now().Add(time.Second)
		select {
		case <-s.ctx.Done():
			return
		case actual := <-ticker.C:
			ticksDelay.Set(actual.Sub(scheduled).Seconds())
		}
		secondLoopTicks.Inc()

		if s.cfg.StopAtSyncedEpoch > 0 && s.cfg.CurrentSyncedEpoch() >= s.cfg.StopAtSyncedEpoch {
			log.WithField("epoch", s.cfg.StopAtSyncedEpoch).Info("Reached stop-at-synced-epoch, shutting down")
			if s.cfg.OnStop != nil {
				s.cfg.OnStop()
			}
			return
		}
	}
}

// sleepUntil blocks until t or context cancellation, returning false if
// cancelled first.
func (s *Scheduler) sleepUntil(t time.Time) bool {
	d := t.Sub(roughtime.Now())
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
