package p2p

import (
	"context"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/rangesync"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/requestmanager"
)

// RangeSyncAdapter satisfies rangesync.PeerProvider and rangesync.RangeFetcher
// over a shared Service, translating its bare string peer IDs into
// rangesync's local PeerID type.
type RangeSyncAdapter struct {
	*Service
}

// NewRangeSyncAdapter wraps svc for use as a rangesync.Manager collaborator.
func NewRangeSyncAdapter(svc *Service) *RangeSyncAdapter {
	return &RangeSyncAdapter{Service: svc}
}

// BestPeers satisfies rangesync.PeerProvider.
func (a *RangeSyncAdapter) BestPeers(n int) []rangesync.PeerID {
	ids := a.peers.best(n)
	out := make([]rangesync.PeerID, len(ids))
	for i, id := range ids {
		out[i] = rangesync.PeerID(id)
	}
	return out
}

// FetchBlockRange satisfies rangesync.RangeFetcher.
func (a *RangeSyncAdapter) FetchBlockRange(ctx context.Context, peer rangesync.PeerID, startSlot, count uint64, wantBlobs bool) ([]*forktypes.BeaconBlock, []*forktypes.BlobSidecar, error) {
	return a.fetchBlockRange(ctx, string(peer), startSlot, count, wantBlobs)
}

// RequestManagerAdapter satisfies requestmanager.PeerProvider and
// requestmanager.ByRootFetcher over a shared Service.
type RequestManagerAdapter struct {
	*Service
}

// NewRequestManagerAdapter wraps svc for use as a requestmanager.Manager
// collaborator.
func NewRequestManagerAdapter(svc *Service) *RequestManagerAdapter {
	return &RequestManagerAdapter{Service: svc}
}

// BestPeers satisfies requestmanager.PeerProvider.
func (a *RequestManagerAdapter) BestPeers(n int) []requestmanager.PeerID {
	ids := a.peers.best(n)
	out := make([]requestmanager.PeerID, len(ids))
	for i, id := range ids {
		out[i] = requestmanager.PeerID(id)
	}
	return out
}

// FetchBlockByRoot satisfies requestmanager.ByRootFetcher.
func (a *RequestManagerAdapter) FetchBlockByRoot(ctx context.Context, peer requestmanager.PeerID, root forktypes.Root) (*forktypes.BeaconBlock, error) {
	return a.fetchBlockByRoot(ctx, string(peer), root)
}

// FetchBlobsByRoot satisfies requestmanager.ByRootFetcher.
func (a *RequestManagerAdapter) FetchBlobsByRoot(ctx context.Context, peer requestmanager.PeerID, root forktypes.Root, indices []uint64) ([]*forktypes.BlobSidecar, error) {
	return a.fetchBlobsByRoot(ctx, string(peer), root, indices)
}
