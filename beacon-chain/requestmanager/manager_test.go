package requestmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/blockprocessor"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/quarantine"
	"github.com/stretchr/testify/require"
)

type fakePeers struct{ peers []PeerID }

func (f *fakePeers) BestPeers(n int) []PeerID { return f.peers }

type fakeFetcher struct {
	block *forktypes.BeaconBlock
	blobs []*forktypes.BlobSidecar
}

func (f *fakeFetcher) FetchBlockByRoot(ctx context.Context, peer PeerID, root forktypes.Root) (*forktypes.BeaconBlock, error) {
	return f.block, nil
}

func (f *fakeFetcher) FetchBlobsByRoot(ctx context.Context, peer PeerID, root forktypes.Root, indices []uint64) ([]*forktypes.BlobSidecar, error) {
	return f.blobs, nil
}

func TestManager_NotifyMissingParentFetchesAndReplaysChildren(t *testing.T) {
	parent := &forktypes.BeaconBlock{Root: forktypes.Root{1}, Slot: 5}
	blockQ := quarantine.NewBlockQuarantine(10)
	child := &forktypes.BeaconBlock{Root: forktypes.Root{2}, Slot: 6, ParentRoot: parent.Root}
	require.NoError(t, blockQ.Add(0, child, false))

	var mu sync.Mutex
	var verified []forktypes.Root
	m := New(context.Background(), Config{
		Peers:           &fakePeers{peers: []PeerID{"p1"}},
		Fetcher:         &fakeFetcher{block: parent},
		BlockQuarantine: blockQ,
		BlobQuarantine:  quarantine.NewBlobQuarantine(),
		ProcessorVerify: func(source blockprocessor.Source, block *forktypes.BeaconBlock, blobs []*forktypes.BlobSidecar, maybeFinalized bool) error {
			mu.Lock()
			verified = append(verified, block.Root)
			mu.Unlock()
			return nil
		},
		SyncInProgress: func() bool { return false },
		FinalizedSlot:  func() uint64 { return 0 },
	})

	m.NotifyMissingParent(parent.Root)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(verified) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, verified, parent.Root)
	require.Contains(t, verified, child.Root)
}

func TestManager_SuspendedWhileSyncInProgress(t *testing.T) {
	called := false
	m := New(context.Background(), Config{
		Peers:           &fakePeers{peers: []PeerID{"p1"}},
		Fetcher:         &fakeFetcher{},
		BlockQuarantine: quarantine.NewBlockQuarantine(10),
		BlobQuarantine:  quarantine.NewBlobQuarantine(),
		ProcessorVerify: func(blockprocessor.Source, *forktypes.BeaconBlock, []*forktypes.BlobSidecar, bool) error {
			called = true
			return nil
		},
		SyncInProgress: func() bool { return true },
		FinalizedSlot:  func() uint64 { return 0 },
	})

	m.NotifyMissingParent(forktypes.Root{9})
	time.Sleep(10 * time.Millisecond)
	require.False(t, called)
}

func TestManager_RmanVerifierQuarantinesIncompleteDenebBlock(t *testing.T) {
	blockQ := quarantine.NewBlockQuarantine(10)
	m := New(context.Background(), Config{
		BlockQuarantine: blockQ,
		BlobQuarantine:  quarantine.NewBlobQuarantine(),
		ProcessorVerify: func(blockprocessor.Source, *forktypes.BeaconBlock, []*forktypes.BlobSidecar, bool) error {
			t.Fatal("should not reach the processor without complete blobs")
			return nil
		},
		FinalizedSlot: func() uint64 { return 0 },
	})

	block := &forktypes.BeaconBlock{
		Root: forktypes.Root{5}, Slot: 269568 * 32,
		Body: forktypes.BeaconBlockBody{BlobKzgCommitments: [][]byte{{1}, {2}}},
	}
	require.NoError(t, m.rmanBlockVerifier(block, nil))
	require.Equal(t, 1, blockQ.Len())
}
