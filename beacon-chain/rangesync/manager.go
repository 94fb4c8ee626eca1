// Package rangesync implements the range-sync engine spec.md §4.5 uses
// twice over: once forward (catching the node up to the wall clock) and
// once backward (the Backfiller, walking from the backfill pointer toward
// genesis). Both are the same Manager, configured by Direction.
package rangesync

import (
	"context"
	"sync"
	"time"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/blockprocessor"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Direction distinguishes the forward (catch-up) engine from the backward
// (backfill) engine.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// PeerID is an opaque peer handle; concrete peer selection belongs to the
// p2p package.
type PeerID string

// PeerProvider is the narrow NETWORK boundary for peer selection.
type PeerProvider interface {
	BestPeers(n int) []PeerID
}

// RangeFetcher retrieves a contiguous run of blocks (and their blobs, when
// requested) from peer, starting at startSlot for up to count slots.
type RangeFetcher interface {
	FetchBlockRange(ctx context.Context, peer PeerID, startSlot, count uint64, wantBlobs bool) ([]*forktypes.BeaconBlock, []*forktypes.BlobSidecar, error)
}

// Verifier submits a downloaded block through the same pipeline gossip
// uses, per spec.md §4.5's "same blockVerifier used by gossip" rule.
type Verifier func(source blockprocessor.Source, block *forktypes.BeaconBlock, blobs []*forktypes.BlobSidecar, maybeFinalized bool) error

// Config bundles a Manager's collaborators and tuning knobs.
type Config struct {
	Direction    Direction
	Peers        PeerProvider
	Fetcher      RangeFetcher
	Verify       Verifier
	HeadSlot     func() uint64
	WallSlot     func() uint64
	BackfillSlot func() uint64
	// GenesisOrHorizonSlot is where backward sync halts: genesis, or a
	// frontfill horizon if one is configured.
	GenesisOrHorizonSlot func() uint64
	// ForwardComplete gates the backfiller: it only runs once forward
	// sync has finished, per spec.md §4.5.
	ForwardComplete func() bool
	BatchSize       uint64
	PollInterval    time.Duration
	CurrentEpoch    func() uint64
}

// Manager is one instance of the C5 range-sync engine.
type Manager struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	inProgress bool
}

// New constructs a Manager; call Start to run its loop.
func New(ctx context.Context, cfg Config) *Manager {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 64
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{cfg: cfg, ctx: ctx, cancel: cancel}
}

// InProgress reports whether a sync batch is currently being fetched and
// processed, gating RequestManager's targeted by-root requests.
func (m *Manager) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}

// Start launches the manager's loop in a background goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop halts the loop and waits for it to exit.
func (m *Manager) Stop() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) run() {
	defer m.wg.Done()
	if m.cfg.Direction == Backward {
		m.runBackward()
		return
	}
	m.runForward()
}

// runForward repeatedly fetches batches from head.slot to wallSlot,
// halting once caught up and restarting whenever it falls behind again
// (e.g. after a reorg invalidates progress).
func (m *Manager) runForward() {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
		m.syncForwardBatch()
	}
}

func (m *Manager) syncForwardBatch() {
	head := m.cfg.HeadSlot()
	wall := m.cfg.WallSlot()
	if head >= wall {
		return
	}
	m.mu.Lock()
	m.inProgress = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
	}()

	count := m.cfg.BatchSize
	if remaining := wall - head; remaining < count {
		count = remaining
	}
	m.fetchAndSubmit(head+1, count, false)
}

// runBackward waits for forward sync to complete, then walks backward from
// backfill.slot toward genesis/frontfill horizon in batches, polling at
// cfg.PollInterval between batches per spec.md §4.5.
func (m *Manager) runBackward() {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
		if !m.cfg.ForwardComplete() {
			continue
		}
		m.syncBackwardBatch()
	}
}

func (m *Manager) syncBackwardBatch() {
	backfill := m.cfg.BackfillSlot()
	horizon := m.cfg.GenesisOrHorizonSlot()
	if backfill <= horizon {
		return
	}
	m.mu.Lock()
	m.inProgress = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inProgress = false
		m.mu.Unlock()
	}()

	count := m.cfg.BatchSize
	if span := backfill - horizon; span < count {
		count = span
	}
	start := backfill - count
	// maybeFinalized=true: backward-synced ranges are, by construction,
	// behind the finalized checkpoint once finality has advanced past
	// them, letting BlockProcessor skip redundant fork-choice bookkeeping.
	m.fetchAndSubmit(start, count, true)
}

func (m *Manager) fetchAndSubmit(startSlot, count uint64, maybeFinalized bool) {
	peers := m.cfg.Peers.BestPeers(1)
	if len(peers) == 0 {
		return
	}
	wantBlobs := m.blobsRequiredForRange(startSlot)
	blocks, blobs, err := m.cfg.Fetcher.FetchBlockRange(m.ctx, peers[0], startSlot, count, wantBlobs)
	if err != nil {
		log.WithError(err).WithField("startSlot", startSlot).Debug("Range fetch failed")
		return
	}
	batchesFetched.WithLabelValues(directionLabel(m.cfg.Direction)).Inc()

	blobsByRoot := make(map[forktypes.Root][]*forktypes.BlobSidecar)
	for _, b := range blobs {
		blobsByRoot[b.BlockRoot] = append(blobsByRoot[b.BlockRoot], b)
	}

	source := blockprocessor.SourceRangeSync
	if m.cfg.Direction == Backward {
		source = blockprocessor.SourceBackfill
	}
	for _, block := range blocks {
		if err := m.cfg.Verify(source, block, blobsByRoot[block.Root], maybeFinalized); err != nil {
			log.WithError(err).WithField("slot", block.Slot).Debug("Range-synced block rejected")
		}
	}
}

func directionLabel(d Direction) string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// blobsRequiredForRange reports whether blocks starting at startSlot fall
// within MIN_EPOCHS_FOR_BLOB_SIDECARS_REQUESTS of the current epoch and
// are Deneb+, the window within which peers are expected to still serve
// blobs for them.
func (m *Manager) blobsRequiredForRange(startSlot uint64) bool {
	cfg := params.BeaconConfig()
	epoch := startSlot / cfg.SlotsPerEpoch
	if forktypes.ForkAtEpoch(epoch) < params.Deneb {
		return false
	}
	current := m.cfg.CurrentEpoch()
	if current < epoch {
		return true
	}
	return current-epoch <= cfg.MinEpochsForBlobSidecarsRequests
}
