// Package forktypes defines the fork-tagged block and blob types the rest
// of the orchestrator operates on. The wire encoding and state-transition
// semantics of these types belong to CONSENSUS_SPEC; this package only
// carries the shape the orchestrator needs to route, quarantine, and
// gossip them.
package forktypes

import (
	"fmt"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/slotutil"
)

// Root is a 32-byte SSZ hash-tree-root digest.
type Root [32]byte

// String renders a short hex prefix, the same truncated form every
// Prysm-era log line uses for roots.
func (r Root) String() string {
	return fmt.Sprintf("0x%x", r[:6])
}

// Checkpoint pairs an epoch with the block root that starts it, the unit
// finalization and justification operate on.
type Checkpoint struct {
	Epoch uint64
	Root  Root
}

// BeaconBlockBody carries only the fields the orchestrator itself
// inspects; everything else (operations, execution payload, etc.) is
// opaque to this package and belongs to CONSENSUS_SPEC.
type BeaconBlockBody struct {
	BlobKzgCommitments [][]byte
}

// BeaconBlock is the tagged union described in spec.md's DESIGN NOTES:
// a single struct carrying a Fork discriminant rather than an interface
// hierarchy, so callers exhaustively switch on Fork instead of reflecting.
type BeaconBlock struct {
	Fork        params.Fork
	Slot        uint64
	ProposerIdx uint64
	ParentRoot  Root
	Root        Root
	Body        BeaconBlockBody
}

// Epoch returns the epoch containing the block's slot.
func (b *BeaconBlock) Epoch() uint64 {
	return slotutil.EpochAtSlot(b.Slot)
}

// HasBlobCommitments reports whether the block body carries any KZG
// commitments (i.e. is Deneb+ with a non-empty blob list).
func (b *BeaconBlock) HasBlobCommitments() bool {
	return len(b.Body.BlobKzgCommitments) > 0
}

// BlobSidecar is a data-availability payload associated with a Deneb+
// block, addressed by (BlockRoot, Index).
type BlobSidecar struct {
	BlockRoot   Root
	Index       uint64
	Slot        uint64
	ProposerIdx uint64
	Data        []byte
}

// ForkAtEpoch returns the highest-activated fork whose activation epoch is
// <= epoch, per the fork schedule in the active BeaconChainConfig.
func ForkAtEpoch(epoch uint64) params.Fork {
	cfg := params.BeaconConfig()
	switch {
	case epoch >= cfg.DenebForkEpoch:
		return params.Deneb
	case epoch >= cfg.CapellaForkEpoch:
		return params.Capella
	case epoch >= cfg.BellatrixForkEpoch:
		return params.Bellatrix
	case epoch >= cfg.AltairForkEpoch:
		return params.Altair
	default:
		return params.Phase0
	}
}
