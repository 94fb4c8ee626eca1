package quarantine

import (
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/stretchr/testify/require"
)

func blockWithCommitments(root forktypes.Root, n int) *forktypes.BeaconBlock {
	commitments := make([][]byte, n)
	for i := range commitments {
		commitments[i] = []byte{byte(i)}
	}
	return &forktypes.BeaconBlock{Root: root, Body: forktypes.BeaconBlockBody{BlobKzgCommitments: commitments}}
}

func TestBlobQuarantine_PutAtMostOnce(t *testing.T) {
	q := NewBlobQuarantine()
	root := forktypes.Root{1}
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 0})
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 0, Slot: 99})

	require.Equal(t, 1, q.Len())
}

func TestBlobQuarantine_HasBlobsRequiresContiguousPrefix(t *testing.T) {
	q := NewBlobQuarantine()
	root := forktypes.Root{2}
	block := blockWithCommitments(root, 3)

	require.False(t, q.HasBlobs(block))

	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 1})
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 2})
	require.False(t, q.HasBlobs(block))

	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 0})
	require.True(t, q.HasBlobs(block))
}

func TestBlobQuarantine_PopBlobsReturnsContiguousPrefixOnly(t *testing.T) {
	q := NewBlobQuarantine()
	root := forktypes.Root{3}
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 0})
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 1})
	// Gap at index 2.
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 3})

	popped := q.PopBlobs(root)
	require.Len(t, popped, 2)
	require.Equal(t, uint64(0), popped[0].Index)
	require.Equal(t, uint64(1), popped[1].Index)

	// The gap-blocked entry at index 3 remains quarantined.
	require.Equal(t, 1, q.Len())
}

func TestBlobQuarantine_EvictsOldestWhenFull(t *testing.T) {
	cfg := params.MainnetConfig().Copy()
	cfg.SlotsPerEpoch = 1
	cfg.MaxBlobsPerBlock = 2
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	q := NewBlobQuarantine()
	require.Equal(t, 2, q.capacity)

	r1, r2, r3 := forktypes.Root{1}, forktypes.Root{2}, forktypes.Root{3}
	q.Put(&forktypes.BlobSidecar{BlockRoot: r1, Index: 0})
	q.Put(&forktypes.BlobSidecar{BlockRoot: r2, Index: 0})
	q.Put(&forktypes.BlobSidecar{BlockRoot: r3, Index: 0})

	require.Equal(t, 2, q.Len())
	require.Empty(t, q.BlobIndices(r1))
	require.NotEmpty(t, q.BlobIndices(r2))
	require.NotEmpty(t, q.BlobIndices(r3))
}

func TestBlobQuarantine_FetchRecord(t *testing.T) {
	q := NewBlobQuarantine()
	root := forktypes.Root{4}
	block := blockWithCommitments(root, 3)
	q.Put(&forktypes.BlobSidecar{BlockRoot: root, Index: 1})

	rec := q.FetchRecord(block)
	require.Equal(t, root, rec.BlockRoot)
	require.Equal(t, []uint64{0, 2}, rec.MissingIndices)
}
