package blockchain

import (
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Participation flag bits, matching the consensus spec's
// TIMELY_SOURCE_FLAG_INDEX/TIMELY_TARGET_FLAG_INDEX.
const (
	TimelySourceFlag byte = 1 << 0
	TimelyTargetFlag byte = 1 << 1
)

// ValidatorStatus is the subset of a validator's state the ActionTracker
// needs to decide whether the fast path applies.
type ValidatorStatus struct {
	EffectiveBalance  uint64
	ParticipationFlag byte
	InactivityScore   uint64
	Active            bool
}

// EpochRef is the fully-recomputed per-epoch proposer/attester/sync-committee
// assignment set, the expensive fallback path produces.
type EpochRef struct {
	Epoch              uint64
	ProposerDuties      map[uint64]uint64 // slot -> validator index
	SyncCommittee      []uint64
	CommitteeAssignments map[uint64][]uint64 // committee index -> validator indices
}

// ActionTracker maintains the duty assignments the DutyDispatcher consumes.
// Per spec.md §4.4, from Altair onward, when the relevant shufflings are
// already cached and the next epoch's first proposer passes the stability
// predicate (TIMELY_SOURCE and TIMELY_TARGET both set, effective balance at
// the maximum, inactivity score zero, current epoch past genesis, and no
// balance change crossing a hysteresis threshold), the tracker can carry the
// previous epoch's EpochRef forward instead of paying for a full
// recomputation -- the fast path. Any instability forces the fallback: a
// full recomputation of EpochRef for the epoch.
type ActionTracker struct {
	mu sync.RWMutex

	currentEpoch uint64
	refs         map[uint64]*EpochRef
	lastStatus   map[uint64]ValidatorStatus
	shufflingsOK map[uint64]bool // epoch -> shuffling cache populated

	recompute func(epoch uint64) (*EpochRef, error)
}

// NewActionTracker wires recompute as the fallback full-recomputation
// callback (owned by the consensus core, out of this orchestrator's scope
// per spec.md's external-interface boundary).
func NewActionTracker(recompute func(epoch uint64) (*EpochRef, error)) *ActionTracker {
	return &ActionTracker{
		refs:         make(map[uint64]*EpochRef),
		lastStatus:   make(map[uint64]ValidatorStatus),
		shufflingsOK: make(map[uint64]bool),
		recompute:    recompute,
	}
}

// MarkShufflingReady records that epoch's shuffling is cached and available,
// a precondition for the fast path.
func (a *ActionTracker) MarkShufflingReady(epoch uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shufflingsOK[epoch] = true
}

// UpdateSlot advances the tracker to the epoch containing slot, taking the
// fast path when eligible and falling back to a full recomputation
// otherwise. statuses is the current validator-status snapshot; firstProposer
// is the validator index of next epoch's first proposer, as computed
// externally over the cached shuffling (CONSENSUS_SPEC's responsibility, not
// this tracker's -- mirrors the committee-to-slot mapping boundary drawn in
// node/stubs.go's actionTrackerDutyProvider).
func (a *ActionTracker) UpdateSlot(slot uint64, statuses map[uint64]ValidatorStatus, firstProposer uint64, fork params.Fork) error {
	epoch := slot / params.BeaconConfig().SlotsPerEpoch
	a.mu.Lock()
	defer a.mu.Unlock()

	if epoch == a.currentEpoch {
		if _, ok := a.refs[epoch]; ok {
			return nil
		}
	}

	if fork >= params.Altair && a.shufflingsOK[epoch] && a.stableLocked(statuses, firstProposer) {
		if prev, ok := a.refs[a.currentEpoch]; ok {
			carried := *prev
			carried.Epoch = epoch
			a.refs[epoch] = &carried
			a.currentEpoch = epoch
			a.lastStatus = statuses
			actionTrackerFastPath.Inc()
			return nil
		}
	}

	ref, err := a.recompute(epoch)
	if err != nil {
		return err
	}
	a.refs[epoch] = ref
	a.currentEpoch = epoch
	a.lastStatus = statuses
	actionTrackerFallback.Inc()
	return nil
}

// stableLocked implements spec.md §4.4's stability predicate against the
// next epoch's first proposer only: both TIMELY_SOURCE and TIMELY_TARGET
// set, effective balance at the maximum, an inactivity score of zero, the
// current epoch past genesis, and no balance movement
// large enough to cross a hysteresis threshold since the last snapshot.
func (a *ActionTracker) stableLocked(statuses map[uint64]ValidatorStatus, firstProposer uint64) bool {
	if a.currentEpoch == params.BeaconConfig().GenesisEpoch {
		return false
	}
	cur, ok := statuses[firstProposer]
	if !ok {
		return false
	}
	if cur.ParticipationFlag&(TimelySourceFlag|TimelyTargetFlag) != TimelySourceFlag|TimelyTargetFlag {
		return false
	}
	if cur.EffectiveBalance != params.BeaconConfig().MaxEffectiveBalance {
		return false
	}
	if cur.InactivityScore != 0 {
		return false
	}
	prev, ok := a.lastStatus[firstProposer]
	if !ok {
		return false
	}
	cfg := params.BeaconConfig()
	if !withinHysteresis(prev.EffectiveBalance, cur.EffectiveBalance, cfg.HysteresisQuotient, cfg.HysteresisDownwardMultiplier, cfg.HysteresisUpwardMultiplier, cfg.EffectiveBalanceIncrement) {
		return false
	}
	return true
}

func withinHysteresis(prev, cur uint64, quotient, downward, upward, increment uint64) bool {
	hysteresisIncrement := increment / quotient
	downwardThreshold := hysteresisIncrement * downward
	upwardThreshold := hysteresisIncrement * upward
	if cur+downwardThreshold < prev {
		return false
	}
	if cur > prev+upwardThreshold {
		return false
	}
	return true
}

// EpochRefFor returns the cached duty assignments for epoch, if present.
func (a *ActionTracker) EpochRefFor(epoch uint64) (*EpochRef, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ref, ok := a.refs[epoch]
	return ref, ok
}

// PruneBefore drops cached EpochRefs and shuffling markers older than epoch,
// invoked by the scheduler's per-slot pruning step.
func (a *ActionTracker) PruneBefore(epoch uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for e := range a.refs {
		if e < epoch {
			delete(a.refs, e)
		}
	}
	for e := range a.shufflingsOK {
		if e < epoch {
			delete(a.shufflingsOK, e)
		}
	}
}
