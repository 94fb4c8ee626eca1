package db

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/duties"
)

// slashingProtectionCacheSize bounds the number of validators whose
// protection history is held hot; the long tail of inactive validators
// falls back to the backing map without losing correctness, only cache
// locality, mirroring the teacher's bounded validator-pubkey LRU.
const slashingProtectionCacheSize = 4096

// protectionRecord is one validator's minimal slashing-protection state:
// the lowest-water marks a signature must clear to be safe.
type protectionRecord struct {
	lastProposalSlot uint64
	minSourceEpoch   uint64
	minTargetEpoch   uint64
}

// SlashingProtectionStore implements duties.SlashingProtector, refusing a
// proposal at or before the last recorded proposal slot and an attestation
// or aggregation below the last recorded slot. A repeat attestation or
// aggregation at the last recorded slot is not refused.
type SlashingProtectionStore struct {
	mu      sync.Mutex
	records map[uint64]*protectionRecord
	hot     *lru.Cache
}

// NewSlashingProtectionStore constructs an empty store.
func NewSlashingProtectionStore() *SlashingProtectionStore {
	hot, err := lru.New(slashingProtectionCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// slashingProtectionCacheSize never is.
		panic(err)
	}
	return &SlashingProtectionStore{records: make(map[uint64]*protectionRecord), hot: hot}
}

// SafeToSign reports whether duty can be signed without violating a
// previously recorded protection record, and if so records the new
// high-water mark.
func (s *SlashingProtectionStore) SafeToSign(validatorIndex uint64, duty duties.Duty) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(validatorIndex)
	switch duty.Kind {
	case duties.Proposal:
		if duty.Slot <= rec.lastProposalSlot && rec.lastProposalSlot != 0 {
			log.WithField("validatorIndex", validatorIndex).WithField("slot", duty.Slot).Warn("Refusing double-propose")
			return false
		}
		rec.lastProposalSlot = duty.Slot
	case duties.Attestation, duties.Aggregation:
		// Slot stands in for the attestation's target epoch here since
		// this package only tracks the orchestration-level duty, not
		// the full (source, target) vote CONSENSUS_SPEC signs.
		epoch := duty.Slot
		if epoch < rec.minSourceEpoch || epoch < rec.minTargetEpoch {
			log.WithField("validatorIndex", validatorIndex).WithField("epoch", epoch).Warn("Refusing surround/double vote")
			return false
		}
		rec.minSourceEpoch = epoch
		rec.minTargetEpoch = epoch
	}
	return true
}

func (s *SlashingProtectionStore) recordLocked(validatorIndex uint64) *protectionRecord {
	if v, ok := s.hot.Get(validatorIndex); ok {
		return v.(*protectionRecord)
	}
	rec, ok := s.records[validatorIndex]
	if !ok {
		rec = &protectionRecord{}
		s.records[validatorIndex] = rec
	}
	s.hot.Add(validatorIndex, rec)
	return rec
}
