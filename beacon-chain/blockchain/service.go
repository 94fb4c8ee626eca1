package blockchain

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/event"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Service is the ConsensusManager: it owns the ChainDAG and ActionTracker,
// re-runs UpdateHead on every accepted block, and publishes HeadChange,
// Reorg, and Finalization notifications on its feeds for the gossip
// controller, duty dispatcher, and RPC layer to subscribe to.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	dag *ChainDAG

	actionTracker *ActionTracker

	headFeed  event.Feed[HeadChangeEvent]
	reorgFeed event.Feed[ReorgEvent]
	finFeed   event.Feed[FinalizationEvent]
}

// Config bundles a Service's constructor arguments.
type Config struct {
	Genesis   *forktypes.BeaconBlock
	Recompute func(epoch uint64) (*EpochRef, error)
}

// NewService constructs a ConsensusManager seeded at genesis. Start/Stop are
// no-ops beyond context lifecycle: every mutation arrives through
// ReceiveBlock/ReceiveAttestationWeight/UpdateSlot calls made by the
// BlockProcessor and SlotScheduler, not an internal goroutine loop.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:           ctx,
		cancel:        cancel,
		dag:           NewChainDAG(cfg.Genesis),
		actionTracker: NewActionTracker(cfg.Recompute),
	}
}

// Start satisfies shared/service.Service. No background loop runs here.
func (s *Service) Start() {
	log.Info("Starting consensus manager")
}

// Stop satisfies shared/service.Service.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// DAG exposes the underlying ChainDAG for read access by collaborators that
// need direct queries (gossip controller's fork digest computation, the RPC
// layer's head/finality getters).
func (s *Service) DAG() *ChainDAG {
	return s.dag
}

// ActionTracker exposes the underlying ActionTracker for the duty
// dispatcher.
func (s *Service) ActionTracker() *ActionTracker {
	return s.actionTracker
}

// Block satisfies blockprocessor.ChainReader, delegating to the DAG.
func (s *Service) Block(root forktypes.Root) (*forktypes.BeaconBlock, bool) {
	return s.dag.Block(root)
}

// FinalizedCheckpoint satisfies blockprocessor.ChainReader, delegating to
// the DAG.
func (s *Service) FinalizedCheckpoint() forktypes.Checkpoint {
	return s.dag.FinalizedCheckpoint()
}

// Tick re-runs fork choice and publishes any resulting head/reorg events
// without a new block or weight update, the SlotScheduler's UpdateHead
// hook that guards against a stale head across a quiet slot.
func (s *Service) Tick(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishHeadEvents()
}

// HeadFeed returns the feed HeadChangeEvents are published on.
func (s *Service) HeadFeed() *event.Feed[HeadChangeEvent] {
	return &s.headFeed
}

// ReorgFeed returns the feed ReorgEvents are published on.
func (s *Service) ReorgFeed() *event.Feed[ReorgEvent] {
	return &s.reorgFeed
}

// FinalizationFeed returns the feed FinalizationEvents are published on.
func (s *Service) FinalizationFeed() *event.Feed[FinalizationEvent] {
	return &s.finFeed
}

// ReceiveBlock inserts a block the BlockProcessor has already verified and
// determined has a known parent, then re-runs fork choice and publishes any
// resulting events.
func (s *Service) ReceiveBlock(block *forktypes.BeaconBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dag.InsertBlock(block); err != nil {
		return err
	}
	s.publishHeadEvents()
	return nil
}

// ReceiveAttestationWeight folds LMD-GHOST weight onto root and re-runs
// fork choice.
func (s *Service) ReceiveAttestationWeight(root forktypes.Root, weight uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dag.AddWeight(root, weight)
	s.publishHeadEvents()
}

// SetFinalized advances the finalized checkpoint, prunes the DAG, and
// publishes a FinalizationEvent.
func (s *Service) SetFinalized(cp forktypes.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dag.SetFinalized(cp)
	pruned := s.dag.PruneFinalized()
	log.WithField("epoch", cp.Epoch).WithField("prunedNodes", pruned).Debug("Finalized checkpoint advanced")
	s.finFeed.Send(FinalizationEvent{Checkpoint: cp})
}

// UpdateSlot advances the ActionTracker to the epoch containing slot.
// firstProposer is next epoch's first proposer, per ActionTracker.UpdateSlot.
func (s *Service) UpdateSlot(slot uint64, statuses map[uint64]ValidatorStatus, firstProposer uint64) error {
	fork := forktypes.ForkAtEpoch(slot / params.BeaconConfig().SlotsPerEpoch)
	return s.actionTracker.UpdateSlot(slot, statuses, firstProposer, fork)
}

func (s *Service) publishHeadEvents() {
	for _, e := range s.dag.UpdateHead() {
		switch evt := e.(type) {
		case HeadChangeEvent:
			s.headFeed.Send(evt)
		case ReorgEvent:
			s.reorgFeed.Send(evt)
		}
	}
}
