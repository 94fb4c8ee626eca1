// Package p2p implements the NETWORK external-interface boundary: the
// concrete collaborator behind gossip.Network, rangesync.PeerProvider/
// RangeFetcher, and requestmanager.PeerProvider/ByRootFetcher. It never
// imports a concrete libp2p stack; Transport is the swap point a real
// pubsub/reqresp implementation would satisfy, so Service itself only
// owns peer bookkeeping, subnet targeting, and topic accounting.
package p2p

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/go-bitfield"
	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
)

// Transport is the wire-level collaborator a real libp2p gossipsub +
// req/resp implementation provides.
type Transport interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	RequestBlockRange(ctx context.Context, peer string, startSlot, count uint64, wantBlobs bool) ([]*forktypes.BeaconBlock, []*forktypes.BlobSidecar, error)
	RequestBlockByRoot(ctx context.Context, peer string, root forktypes.Root) (*forktypes.BeaconBlock, error)
	RequestBlobsByRoot(ctx context.Context, peer string, root forktypes.Root, indices []uint64) ([]*forktypes.BlobSidecar, error)
}

// Service is the NETWORK boundary implementation. It satisfies
// gossip.Network directly; rangesync and requestmanager each get a thin
// adapter (RangeSyncAdapter, RequestManagerAdapter) because their
// PeerProvider interfaces return distinct local PeerID string types.
type Service struct {
	transport Transport
	peers     *peerStore

	mu     sync.Mutex
	topics map[string]bool
}

// NewService constructs a Service over transport.
func NewService(transport Transport) *Service {
	return &Service{transport: transport, peers: newPeerStore(), topics: make(map[string]bool)}
}

// AddPeer registers or updates a peer's score and advertised attestation
// subnets, called as the transport reports connections and metadata
// updates.
func (s *Service) AddPeer(id string, score float64, attnets bitfield.Bitvector64) {
	s.peers.upsert(id, score, attnets)
}

// RemovePeer drops a peer, called on disconnect.
func (s *Service) RemovePeer(id string) {
	s.peers.remove(id)
}

// SubscribeTopic satisfies gossip.Network.
func (s *Service) SubscribeTopic(topic string) error {
	if err := s.transport.Subscribe(topic); err != nil {
		return err
	}
	s.mu.Lock()
	s.topics[topic] = true
	activeTopics.Set(float64(len(s.topics)))
	s.mu.Unlock()
	return nil
}

// UnsubscribeTopic satisfies gossip.Network.
func (s *Service) UnsubscribeTopic(topic string) error {
	if err := s.transport.Unsubscribe(topic); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.topics, topic)
	activeTopics.Set(float64(len(s.topics)))
	s.mu.Unlock()
	return nil
}

// ActiveTopics returns the currently subscribed topic set, for
// diagnostics/tests.
func (s *Service) ActiveTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

func (s *Service) fetchBlockRange(ctx context.Context, peer string, startSlot, count uint64, wantBlobs bool) ([]*forktypes.BeaconBlock, []*forktypes.BlobSidecar, error) {
	ctx, span := trace.StartSpan(ctx, "p2p.RequestBlockRange")
	defer span.End()
	span.AddAttributes(trace.Int64Attribute("count", int64(count)))
	return s.transport.RequestBlockRange(ctx, peer, startSlot, count, wantBlobs)
}

func (s *Service) fetchBlockByRoot(ctx context.Context, peer string, root forktypes.Root) (*forktypes.BeaconBlock, error) {
	ctx, span := trace.StartSpan(ctx, "p2p.RequestBlockByRoot")
	defer span.End()
	return s.transport.RequestBlockByRoot(ctx, peer, root)
}

func (s *Service) fetchBlobsByRoot(ctx context.Context, peer string, root forktypes.Root, indices []uint64) ([]*forktypes.BlobSidecar, error) {
	ctx, span := trace.StartSpan(ctx, "p2p.RequestBlobsByRoot")
	defer span.End()
	return s.transport.RequestBlobsByRoot(ctx, peer, root, indices)
}
