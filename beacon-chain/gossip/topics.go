package gossip

import "github.com/prysmaticlabs/beacon-orchestrator/shared/params"

// staticTopicsForFork returns the fork-gated, non-subnet topic names that
// become active once fork is reached, per spec.md §4.7's per-fork topic
// sets. Subnet-indexed topics (attestation subnets, sync-committee
// subnets, blob-sidecar subnets) are computed separately since their
// membership changes independently of fork activation.
func staticTopicsForFork(fork params.Fork) []string {
	topics := []string{
		"attester_slashing",
		"proposer_slashing",
		"voluntary_exit",
		"beacon_aggregate_and_proof",
	}
	if fork >= params.Altair {
		topics = append(topics, "sync_committee_contribution_and_proof")
	}
	if fork >= params.Capella {
		topics = append(topics, "bls_to_execution_change")
	}
	return topics
}

// blobSubnetCount returns how many blob-sidecar subnets Deneb+ exposes.
func blobSubnetCount() uint64 {
	return params.BeaconConfig().MaxBlobsPerBlock
}
