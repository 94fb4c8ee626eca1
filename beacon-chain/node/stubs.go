package node

import (
	"context"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/blockchain"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/duties"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// actionTrackerDutyProvider adapts blockchain.ActionTracker's per-epoch
// duty assignments into duties.DutyProvider's (lastSlot, wallSlot] query
// shape. Proposal duties come directly off EpochRef.ProposerDuties;
// attestation duties are approximated as one per committee-assigned
// validator at the epoch's first slot, since EpochRef does not carry a
// full per-validator slot assignment -- the precise committee-to-slot
// mapping is CONSENSUS_SPEC's to compute, not this orchestrator's.
type actionTrackerDutyProvider struct {
	chain *blockchain.Service
}

func newActionTrackerDutyProvider(chain *blockchain.Service) *actionTrackerDutyProvider {
	return &actionTrackerDutyProvider{chain: chain}
}

func (p *actionTrackerDutyProvider) DutiesInRange(lastSlot, wallSlot uint64) []duties.Duty {
	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	var out []duties.Duty
	for slot := lastSlot + 1; slot <= wallSlot; slot++ {
		epoch := slot / slotsPerEpoch
		ref, ok := p.chain.ActionTracker().EpochRefFor(epoch)
		if !ok {
			continue
		}
		if validatorIdx, ok := ref.ProposerDuties[slot]; ok {
			out = append(out, duties.Duty{Kind: duties.Proposal, Slot: slot, ValidatorIndex: validatorIdx})
		}
		if slot == epoch*slotsPerEpoch {
			for _, validators := range ref.CommitteeAssignments {
				for _, v := range validators {
					out = append(out, duties.Duty{Kind: duties.Attestation, Slot: slot, ValidatorIndex: v})
				}
			}
			for _, v := range ref.SyncCommittee {
				out = append(out, duties.Duty{Kind: duties.SyncCommittee, Slot: slot, ValidatorIndex: v})
			}
		}
	}
	return out
}

// noopSigner is used until a real keymanager-backed signer is wired in;
// validator key custody and BLS signing are out of this orchestrator's
// scope per spec.md's Non-goals.
type noopSigner struct{}

func (noopSigner) SignAttestation(ctx context.Context, validatorIndex, slot uint64) error {
	return nil
}
func (noopSigner) SignAggregation(ctx context.Context, validatorIndex, slot uint64) error {
	return nil
}
func (noopSigner) SignSyncCommitteeMessage(ctx context.Context, validatorIndex, slot uint64) error {
	return nil
}
func (noopSigner) SignProposal(ctx context.Context, validatorIndex, slot uint64) error { return nil }

// noopRegistrationSubmitter is used until a real builder-API client is
// wired in.
type noopRegistrationSubmitter struct{}

func (noopRegistrationSubmitter) SubmitValidatorRegistrations(ctx context.Context, validatorIndices []uint64) error {
	return nil
}
