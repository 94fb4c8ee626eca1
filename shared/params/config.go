// Package params defines the static beacon chain configuration used
// throughout the orchestrator: slot/epoch timing, fork schedule, and the
// assorted thresholds the consensus manager, gossip controller, and slot
// scheduler all key off of.
package params

import "time"

// Fork identifies a consensus-layer fork by name. Ordered: later forks
// compare greater than earlier ones.
type Fork int

// Consensus forks, in activation order.
const (
	Phase0 Fork = iota
	Altair
	Bellatrix
	Capella
	Deneb
)

func (f Fork) String() string {
	switch f {
	case Phase0:
		return "phase0"
	case Altair:
		return "altair"
	case Bellatrix:
		return "bellatrix"
	case Capella:
		return "capella"
	case Deneb:
		return "deneb"
	default:
		return "unknown"
	}
}

// BeaconChainConfig holds every constant the orchestrator consults. A
// single global instance is installed via OverrideBeaconConfig; tests
// install their own via the same hook.
type BeaconChainConfig struct {
	SlotsPerEpoch   uint64
	SecondsPerSlot  uint64
	GenesisEpoch    uint64
	MaxBlobsPerBlock uint64

	// Fork schedule, keyed by epoch at which the fork activates.
	AltairForkEpoch     uint64
	BellatrixForkEpoch  uint64
	CapellaForkEpoch    uint64
	DenebForkEpoch      uint64

	MinEpochsForBlobSidecarsRequests uint64

	// Sync / gossip thresholds.
	SyncStaleSlots     uint64 // isBehind threshold (64 in spec.md).
	SyncHysteresisSlots uint64 // hysteresis band (16 in spec.md).
	MaxPeersToSync     int

	// ActionTracker / validator balance bookkeeping.
	MaxEffectiveBalance          uint64
	EffectiveBalanceIncrement    uint64
	HysteresisQuotient           uint64
	HysteresisDownwardMultiplier uint64
	HysteresisUpwardMultiplier   uint64

	EpochsPerValidatorRegistrationSubmission uint64
	MaxCommitteesPerSlot                     uint64

	AggregateSlotOffset time.Duration
}

var beaconConfig = MainnetConfig()

// BeaconConfig returns the currently installed configuration.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig installs cfg as the active configuration. Tests use
// this to dial in minimal/deterministic values.
func OverrideBeaconConfig(cfg *BeaconChainConfig) {
	beaconConfig = cfg
}

// Copy returns a value copy of the config, safe to mutate independently.
func (b *BeaconChainConfig) Copy() *BeaconChainConfig {
	copied := *b
	return &copied
}

// MainnetConfig returns the production constant set.
func MainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		SlotsPerEpoch:                             32,
		SecondsPerSlot:                            12,
		GenesisEpoch:                               0,
		MaxBlobsPerBlock:                           6,
		AltairForkEpoch:                            74240,
		BellatrixForkEpoch:                         144896,
		CapellaForkEpoch:                           194048,
		DenebForkEpoch:                             269568,
		MinEpochsForBlobSidecarsRequests:           4096,
		SyncStaleSlots:                             64,
		SyncHysteresisSlots:                        16,
		MaxPeersToSync:                             15,
		MaxEffectiveBalance:                        32_000_000_000,
		EffectiveBalanceIncrement:                  1_000_000_000,
		HysteresisQuotient:                         4,
		HysteresisDownwardMultiplier:               1,
		HysteresisUpwardMultiplier:                 5,
		EpochsPerValidatorRegistrationSubmission:    4,
		MaxCommitteesPerSlot:                       64,
		AggregateSlotOffset:                        4 * time.Second,
	}
}

// MinimalConfig returns a fast-moving constant set suitable for tests and
// local devnets.
func MinimalConfig() *BeaconChainConfig {
	cfg := MainnetConfig().Copy()
	cfg.SlotsPerEpoch = 8
	cfg.SecondsPerSlot = 6
	cfg.AltairForkEpoch = 0
	cfg.BellatrixForkEpoch = 0
	cfg.CapellaForkEpoch = 0
	cfg.DenebForkEpoch = 0
	cfg.MinEpochsForBlobSidecarsRequests = 4
	cfg.SyncStaleSlots = 4
	cfg.SyncHysteresisSlots = 2
	return cfg
}
