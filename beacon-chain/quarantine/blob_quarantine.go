// Package quarantine holds blocks and blobs that cannot yet be processed
// because a dependency (parent block, or blob sidecar) is missing. Both
// types here are bounded, best-effort caches that evict their oldest
// entries under pressure, mirroring the advisory nature of the teacher's
// pending-block cache in beacon-chain/sync/pending_blocks_queue.go.
// BlobQuarantine insertion never fails; BlockQuarantine.Add rejects a block
// at or before the finalized slot, and reports ErrQuarantineFull if
// eviction cannot make room.
package quarantine

import (
	"sort"
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "quarantine")

type blobKey struct {
	root  forktypes.Root
	index uint64
}

// BlobQuarantine is an ordered, capacity-bounded map of (block_root, index)
// to blob sidecar, per spec.md §4.1.
type BlobQuarantine struct {
	mu       sync.Mutex
	blobs    map[blobKey]*forktypes.BlobSidecar
	order    []blobKey // insertion order, oldest first, for FIFO eviction
	capacity int
}

// NewBlobQuarantine returns a quarantine bounded to
// SLOTS_PER_EPOCH * MAX_BLOBS_PER_BLOCK entries.
func NewBlobQuarantine() *BlobQuarantine {
	cfg := params.BeaconConfig()
	return &BlobQuarantine{
		blobs:    make(map[blobKey]*forktypes.BlobSidecar),
		capacity: int(cfg.SlotsPerEpoch * cfg.MaxBlobsPerBlock),
	}
}

// Put inserts blob, keyed by (block_root, index). At-most-once: a second
// Put for the same key is a no-op. When full, the oldest entry by
// insertion order is evicted first. Never fails.
func (q *BlobQuarantine) Put(blob *forktypes.BlobSidecar) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := blobKey{root: blob.BlockRoot, index: blob.Index}
	if _, exists := q.blobs[key]; exists {
		return
	}
	if len(q.order) >= q.capacity {
		oldest := q.order[0]
		q.order = q.order[1:]
		delete(q.blobs, oldest)
		log.WithField("evicted", oldest.root).Debug("Blob quarantine full, evicted oldest entry")
	}
	q.blobs[key] = blob
	q.order = append(q.order, key)
}

// BlobIndices returns the sorted indices currently present for root.
func (q *BlobQuarantine) BlobIndices(root forktypes.Root) []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var indices []uint64
	for k := range q.blobs {
		if k.root == root {
			indices = append(indices, k.index)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// HasBlob reports whether (root-implied-by-slot/proposer, index) is
// present. Gossip dedup identifies blobs by slot+proposer rather than root
// before the header is fully decoded, so this scans rather than keying
// directly -- acceptable given the bounded quarantine size.
func (q *BlobQuarantine) HasBlob(slot, proposerIndex, index uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, b := range q.blobs {
		if k.index == index && b.Slot == slot && b.ProposerIdx == proposerIndex {
			return true
		}
	}
	return false
}

// HasBlobs reports whether every commitment index in [0, N) for block is
// present in the quarantine.
func (q *BlobQuarantine) HasBlobs(block *forktypes.BeaconBlock) bool {
	n := uint64(len(block.Body.BlobKzgCommitments))
	if n == 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := uint64(0); i < n; i++ {
		if _, ok := q.blobs[blobKey{root: block.Root, index: i}]; !ok {
			return false
		}
	}
	return true
}

// PopBlobs atomically removes and returns the contiguous prefix 0..N-1 for
// root, stopping at the first gap. The returned slice is ordered by index.
func (q *BlobQuarantine) PopBlobs(root forktypes.Root) []*forktypes.BlobSidecar {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*forktypes.BlobSidecar
	for i := uint64(0); ; i++ {
		key := blobKey{root: root, index: i}
		b, ok := q.blobs[key]
		if !ok {
			break
		}
		out = append(out, b)
		delete(q.blobs, key)
		q.removeFromOrder(key)
	}
	return out
}

// MissingBlobRecord names root and the commitment indices still absent.
type MissingBlobRecord struct {
	BlockRoot      forktypes.Root
	MissingIndices []uint64
}

// FetchRecord reports which commitment indices block is still missing,
// for RequestManager to issue targeted by-root-and-index requests.
func (q *BlobQuarantine) FetchRecord(block *forktypes.BeaconBlock) MissingBlobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec := MissingBlobRecord{BlockRoot: block.Root}
	for i := uint64(0); i < uint64(len(block.Body.BlobKzgCommitments)); i++ {
		if _, ok := q.blobs[blobKey{root: block.Root, index: i}]; !ok {
			rec.MissingIndices = append(rec.MissingIndices, i)
		}
	}
	return rec
}

// Len returns the number of blobs currently quarantined, for tests and
// metrics.
func (q *BlobQuarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blobs)
}

func (q *BlobQuarantine) removeFromOrder(key blobKey) {
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}
