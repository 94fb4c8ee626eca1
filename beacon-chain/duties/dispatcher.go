// Package duties implements the C9 DutyDispatcher: running every attached
// validator's attestation, aggregation, sync-committee, and proposal
// duties whose slot falls within a (lastSlot, wallSlot] window, plus the
// periodic validator-registration resubmission and doppelganger-detection
// bookkeeping spec.md's DATA MODEL section describes.
package duties

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Kind identifies which duty a Duty entry represents.
type Kind int

const (
	Attestation Kind = iota
	Aggregation
	SyncCommittee
	Proposal
)

func (k Kind) String() string {
	switch k {
	case Attestation:
		return "attestation"
	case Aggregation:
		return "aggregation"
	case SyncCommittee:
		return "sync_committee"
	case Proposal:
		return "proposal"
	default:
		return "unknown"
	}
}

// Duty is one validator's obligation at a specific slot.
type Duty struct {
	Kind           Kind
	Slot           uint64
	ValidatorIndex uint64
}

// SlashingProtector is consulted before every signature: a duty that would
// double-sign or surround-vote is refused regardless of what the
// ActionTracker scheduled.
type SlashingProtector interface {
	SafeToSign(validatorIndex uint64, duty Duty) bool
}

// Signer performs the actual BLS signing + broadcast for one duty kind.
// CONSENSUS_SPEC and the external payload builder own the real
// implementation; this package only sequences calls to it.
type Signer interface {
	SignAttestation(ctx context.Context, validatorIndex, slot uint64) error
	SignAggregation(ctx context.Context, validatorIndex, slot uint64) error
	SignSyncCommitteeMessage(ctx context.Context, validatorIndex, slot uint64) error
	SignProposal(ctx context.Context, validatorIndex, slot uint64) error
}

// DutyProvider returns every duty scheduled in (lastSlot, wallSlot], drawn
// from the ConsensusManager's ActionTracker.
type DutyProvider interface {
	DutiesInRange(lastSlot, wallSlot uint64) []Duty
}

// RegistrationSubmitter re-submits validator registrations to the external
// payload builder.
type RegistrationSubmitter interface {
	SubmitValidatorRegistrations(ctx context.Context, validatorIndices []uint64) error
}

// Config bundles a Dispatcher's collaborators.
type Config struct {
	AttachedValidators    func() []uint64
	Duties                DutyProvider
	SlashingProtector     SlashingProtector
	Signer                Signer
	RegistrationSubmitter RegistrationSubmitter
	DoppelgangerEnabled   bool
}

// Dispatcher is the C9 DutyDispatcher.
type Dispatcher struct {
	cfg Config

	mu                    sync.Mutex
	doppelganger          map[uint64]*doppelgangerState
	lastRegistrationEpoch uint64
	registrationEpochSet  bool
}

// doppelgangerState tracks one validator's doppelganger-detection window,
// per spec.md's "DoppelgangerDetection" data model.
type doppelgangerState struct {
	broadcastStartEpoch uint64
	lastChecked         uint64
	armed               bool
	live                bool
}

// New constructs a Dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, doppelganger: make(map[uint64]*doppelgangerState)}
}

// HandleValidatorDuties runs every duty scheduled in (lastSlot, wallSlot],
// checking slashing protection before each signature.
func (d *Dispatcher) HandleValidatorDuties(ctx context.Context, lastSlot, wallSlot uint64) {
	duties := d.cfg.Duties.DutiesInRange(lastSlot, wallSlot)
	upcoming := d.cfg.Duties.DutiesInRange(wallSlot, wallSlot+params.BeaconConfig().SlotsPerEpoch)
	if next := earliestUpcoming(upcoming, wallSlot); next != nil {
		nextActionWait.Set(float64(*next))
	}
	for _, duty := range duties {
		if d.cfg.DoppelgangerEnabled && !d.isLive(duty.ValidatorIndex) {
			log.WithField("validatorIndex", duty.ValidatorIndex).Debug("Skipping duty: doppelganger check not yet passed")
			continue
		}
		if !d.cfg.SlashingProtector.SafeToSign(duty.ValidatorIndex, duty) {
			log.WithField("validatorIndex", duty.ValidatorIndex).WithField("duty", duty.Kind.String()).Warn("Refusing to sign: slashing protection violation")
			continue
		}
		if err := d.sign(ctx, duty); err != nil {
			log.WithError(err).WithField("duty", duty.Kind.String()).Error("Duty signing failed")
			continue
		}
		dutiesSigned.WithLabelValues(duty.Kind.String()).Inc()
	}
}

func (d *Dispatcher) sign(ctx context.Context, duty Duty) error {
	switch duty.Kind {
	case Attestation:
		return d.cfg.Signer.SignAttestation(ctx, duty.ValidatorIndex, duty.Slot)
	case Aggregation:
		return d.cfg.Signer.SignAggregation(ctx, duty.ValidatorIndex, duty.Slot)
	case SyncCommittee:
		return d.cfg.Signer.SignSyncCommitteeMessage(ctx, duty.ValidatorIndex, duty.Slot)
	case Proposal:
		return d.cfg.Signer.SignProposal(ctx, duty.ValidatorIndex, duty.Slot)
	default:
		return nil
	}
}

// MaybeSubmitRegistrations re-submits every attached validator's
// registration to the payload builder once every
// EPOCHS_PER_VALIDATOR_REGISTRATION_SUBMISSION epochs, asynchronously so
// it never blocks the slot loop.
func (d *Dispatcher) MaybeSubmitRegistrations(ctx context.Context, epoch uint64) {
	interval := params.BeaconConfig().EpochsPerValidatorRegistrationSubmission
	if interval == 0 || epoch%interval != 0 {
		return
	}
	d.mu.Lock()
	if d.registrationEpochSet && d.lastRegistrationEpoch == epoch {
		d.mu.Unlock()
		return
	}
	d.lastRegistrationEpoch = epoch
	d.registrationEpochSet = true
	d.mu.Unlock()

	validators := d.cfg.AttachedValidators()
	go func() {
		if err := d.cfg.RegistrationSubmitter.SubmitValidatorRegistrations(ctx, validators); err != nil {
			log.WithError(err).Warn("Validator registration resubmission failed")
		}
	}()
}

// ArmDoppelganger starts the doppelganger-detection window for every
// attached validator, called once sync completes.
func (d *Dispatcher) ArmDoppelganger(epoch uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, idx := range d.cfg.AttachedValidators() {
		d.doppelganger[idx] = &doppelgangerState{broadcastStartEpoch: epoch, lastChecked: epoch, armed: true}
	}
}

// DisarmDoppelganger clears every validator's armed state, called on
// disconnect.
func (d *Dispatcher) DisarmDoppelganger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, state := range d.doppelganger {
		state.armed = false
	}
}

// CheckDoppelganger advances the detection window: a validator becomes
// live once at least one full epoch has elapsed since its broadcast
// started while gossip is active, and observedSelf reports no conflicting
// attestation was seen from another host for that validator.
func (d *Dispatcher) CheckDoppelganger(epoch uint64, gossipActive bool, observedSelf func(validatorIndex uint64) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for idx, state := range d.doppelganger {
		if !state.armed || state.live {
			continue
		}
		state.lastChecked = epoch
		if gossipActive && epoch > state.broadcastStartEpoch && observedSelf(idx) {
			state.live = true
		}
	}
	live := 0
	for _, state := range d.doppelganger {
		if !state.armed || state.live {
			live++
		}
	}
	doppelgangerLive.Set(float64(live))
}

// earliestUpcoming returns the seconds until the nearest future duty
// slot, or nil if duties is empty or none lie ahead of wallSlot.
func earliestUpcoming(duties []Duty, wallSlot uint64) *float64 {
	var best *uint64
	for _, duty := range duties {
		if duty.Slot <= wallSlot {
			continue
		}
		if best == nil || duty.Slot < *best {
			slot := duty.Slot
			best = &slot
		}
	}
	if best == nil {
		return nil
	}
	seconds := float64((*best - wallSlot) * params.BeaconConfig().SecondsPerSlot)
	return &seconds
}

func (d *Dispatcher) isLive(validatorIndex uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.doppelganger[validatorIndex]
	if !ok {
		return true // no detection window configured for this validator
	}
	return !state.armed || state.live
}
