package duties

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDuties struct {
	duties []Duty
}

func (f *fakeDuties) DutiesInRange(lastSlot, wallSlot uint64) []Duty {
	var out []Duty
	for _, d := range f.duties {
		if d.Slot > lastSlot && d.Slot <= wallSlot {
			out = append(out, d)
		}
	}
	return out
}

type fakeSlashingProtector struct {
	unsafeValidator uint64
}

func (f *fakeSlashingProtector) SafeToSign(validatorIndex uint64, duty Duty) bool {
	return validatorIndex != f.unsafeValidator
}

type fakeSigner struct {
	mu     sync.Mutex
	signed []Kind
}

func (f *fakeSigner) SignAttestation(ctx context.Context, validatorIndex, slot uint64) error {
	f.record(Attestation)
	return nil
}
func (f *fakeSigner) SignAggregation(ctx context.Context, validatorIndex, slot uint64) error {
	f.record(Aggregation)
	return nil
}
func (f *fakeSigner) SignSyncCommitteeMessage(ctx context.Context, validatorIndex, slot uint64) error {
	f.record(SyncCommittee)
	return nil
}
func (f *fakeSigner) SignProposal(ctx context.Context, validatorIndex, slot uint64) error {
	f.record(Proposal)
	return nil
}
func (f *fakeSigner) record(k Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, k)
}

type fakeRegistrationSubmitter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRegistrationSubmitter) SubmitValidatorRegistrations(ctx context.Context, validatorIndices []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func TestHandleValidatorDuties_SignsDutiesInRange(t *testing.T) {
	duties := &fakeDuties{duties: []Duty{
		{Kind: Attestation, Slot: 5, ValidatorIndex: 1},
		{Kind: Proposal, Slot: 6, ValidatorIndex: 1},
		{Kind: Attestation, Slot: 10, ValidatorIndex: 1}, // out of range
	}}
	signer := &fakeSigner{}
	d := New(Config{
		AttachedValidators: func() []uint64 { return []uint64{1} },
		Duties:             duties,
		SlashingProtector:  &fakeSlashingProtector{},
		Signer:             signer,
	})

	d.HandleValidatorDuties(context.Background(), 4, 6)

	require.ElementsMatch(t, []Kind{Attestation, Proposal}, signer.signed)
}

func TestHandleValidatorDuties_RefusesUnsafeSignature(t *testing.T) {
	duties := &fakeDuties{duties: []Duty{{Kind: Attestation, Slot: 5, ValidatorIndex: 1}}}
	signer := &fakeSigner{}
	d := New(Config{
		AttachedValidators: func() []uint64 { return []uint64{1} },
		Duties:             duties,
		SlashingProtector:  &fakeSlashingProtector{unsafeValidator: 1},
		Signer:             signer,
	})

	d.HandleValidatorDuties(context.Background(), 4, 5)

	require.Empty(t, signer.signed)
}

func TestHandleValidatorDuties_WithholdsArmedValidatorUntilLive(t *testing.T) {
	duties := &fakeDuties{duties: []Duty{{Kind: Attestation, Slot: 5, ValidatorIndex: 1}}}
	signer := &fakeSigner{}
	d := New(Config{
		AttachedValidators:  func() []uint64 { return []uint64{1} },
		Duties:              duties,
		SlashingProtector:   &fakeSlashingProtector{},
		Signer:              signer,
		DoppelgangerEnabled: true,
	})
	d.ArmDoppelganger(10)

	d.HandleValidatorDuties(context.Background(), 4, 5)
	require.Empty(t, signer.signed, "duty should be withheld until doppelganger check clears")

	d.CheckDoppelganger(11, true, func(uint64) bool { return true })
	d.HandleValidatorDuties(context.Background(), 4, 5)
	require.Equal(t, []Kind{Attestation}, signer.signed)
}

func TestCheckDoppelganger_RequiresFullEpochAndGossipActive(t *testing.T) {
	d := New(Config{AttachedValidators: func() []uint64 { return []uint64{1} }})
	d.ArmDoppelganger(10)

	// Same epoch: not enough time has elapsed.
	d.CheckDoppelganger(10, true, func(uint64) bool { return true })
	require.False(t, d.isLive(1))

	// Gossip inactive: stays unconfirmed even after an epoch passes.
	d.CheckDoppelganger(11, false, func(uint64) bool { return true })
	require.False(t, d.isLive(1))

	// Epoch advanced and gossip active and self-observed: now live.
	d.CheckDoppelganger(11, true, func(uint64) bool { return true })
	require.True(t, d.isLive(1))
}

func TestDisarmDoppelganger_StopsGatingDuties(t *testing.T) {
	d := New(Config{AttachedValidators: func() []uint64 { return []uint64{1} }})
	d.ArmDoppelganger(10)
	require.False(t, d.isLive(1))

	d.DisarmDoppelganger()
	require.True(t, d.isLive(1), "disarmed validators should no longer be gated")
}

func TestMaybeSubmitRegistrations_OnlyFiresOnIntervalBoundary(t *testing.T) {
	submitter := &fakeRegistrationSubmitter{}
	d := New(Config{
		AttachedValidators:    func() []uint64 { return []uint64{1, 2} },
		RegistrationSubmitter: submitter,
	})

	d.MaybeSubmitRegistrations(context.Background(), 1) // not a boundary epoch (interval=4)
	d.MaybeSubmitRegistrations(context.Background(), 4)  // boundary
	d.MaybeSubmitRegistrations(context.Background(), 4)  // repeat of same epoch: no-op

	require.Eventually(t, func() bool {
		submitter.mu.Lock()
		defer submitter.mu.Unlock()
		return submitter.calls == 1
	}, time.Second, 5*time.Millisecond)
}
