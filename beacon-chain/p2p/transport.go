package p2p

import (
	"context"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// NoopTransport is the Transport used when the node has no peers
// configured yet (a freshly started solo devnet node). Every fetch
// returns an empty result rather than blocking forever on a connection
// that will never come; a production deployment supplies a real
// pubsub/req-resp Transport instead.
type NoopTransport struct{}

func (NoopTransport) Subscribe(topic string) error   { return nil }
func (NoopTransport) Unsubscribe(topic string) error { return nil }

func (NoopTransport) RequestBlockRange(ctx context.Context, peer string, startSlot, count uint64, wantBlobs bool) ([]*forktypes.BeaconBlock, []*forktypes.BlobSidecar, error) {
	return nil, nil, nil
}

func (NoopTransport) RequestBlockByRoot(ctx context.Context, peer string, root forktypes.Root) (*forktypes.BeaconBlock, error) {
	return nil, nil
}

func (NoopTransport) RequestBlobsByRoot(ctx context.Context, peer string, root forktypes.Root, indices []uint64) ([]*forktypes.BlobSidecar, error) {
	return nil, nil
}
