// Package blockprocessor implements the single-consumer work queue that
// serializes every state-transition against the chain DAG: at most one
// block is ever being processed at a time, matching spec.md's "single
// logical mutator" ownership rule for consensus state.
package blockprocessor

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/quarantine"
	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Source identifies where a block arrived from, recorded for metrics and
// peer-scoring decisions the caller makes on an Invalid verdict.
type Source int

const (
	SourceGossip Source = iota
	SourceRangeSync
	SourceBackfill
	SourceRequestManager
	SourceAPI
)

func (s Source) String() string {
	switch s {
	case SourceGossip:
		return "gossip"
	case SourceRangeSync:
		return "range_sync"
	case SourceBackfill:
		return "backfill"
	case SourceRequestManager:
		return "request_manager"
	case SourceAPI:
		return "api"
	default:
		return "unknown"
	}
}

// ChainReader is the narrow slice of ConsensusManager/ChainDAG the
// processor needs: parent lookups, the finalized checkpoint, and the
// mutation entrypoint that runs fork-choice after a successful
// state-transition. Defined here rather than depending on the blockchain
// package concretely so the processor can be unit-tested with a fake.
type ChainReader interface {
	Block(root forktypes.Root) (*forktypes.BeaconBlock, bool)
	FinalizedCheckpoint() forktypes.Checkpoint
	ReceiveBlock(block *forktypes.BeaconBlock) error
}

// StateTransition runs the external consensus state-transition function
// over block (and its blobs, if any) and reports whether it is valid. This
// is CONSENSUS_SPEC's concern; the processor only sequences calls to it.
type StateTransition func(ctx context.Context, block *forktypes.BeaconBlock, blobs []*forktypes.BlobSidecar) error

type workItem struct {
	source         Source
	block          *forktypes.BeaconBlock
	blobs          []*forktypes.BlobSidecar
	maybeFinalized bool
	result         chan error
}

func (w *workItem) parentKnown(chain ChainReader) bool {
	_, ok := chain.Block(w.block.ParentRoot)
	return ok
}

// Processor is the C3 BlockProcessor: a bounded intake queue drained by a
// single goroutine, preferring items whose parent is already linked into
// the DAG over ones still waiting on an ancestor.
type Processor struct {
	ctx    context.Context
	cancel context.CancelFunc

	chain           ChainReader
	blobQuarantine  *quarantine.BlobQuarantine
	blockQuarantine *quarantine.BlockQuarantine
	transition      StateTransition

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*workItem
	capacity int
	closed   bool

	wg sync.WaitGroup
}

// New constructs a Processor and starts its single consumer goroutine.
func New(ctx context.Context, chain ChainReader, blobQ *quarantine.BlobQuarantine, blockQ *quarantine.BlockQuarantine, transition StateTransition, capacity int) *Processor {
	ctx, cancel := context.WithCancel(ctx)
	p := &Processor{
		ctx:             ctx,
		cancel:          cancel,
		chain:           chain,
		blobQuarantine:  blobQ,
		blockQuarantine: blockQ,
		transition:      transition,
		capacity:        capacity,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(1)
	go p.run()
	return p
}

// Stop drains and halts the consumer goroutine.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// AddBlock enqueues block for processing and blocks until its turn
// completes, returning the VerifierError (if any) the transition produced.
// Named add_block in spec.md §4.3; Go's synchronous-call-over-a-channel
// idiom stands in for the future<Result> the spec describes.
func (p *Processor) AddBlock(source Source, block *forktypes.BeaconBlock, blobs []*forktypes.BlobSidecar, maybeFinalized bool) error {
	if _, ok := p.chain.Block(block.Root); ok {
		return newVerifierError(Duplicate, nil)
	}

	item := &workItem{source: source, block: block, blobs: blobs, maybeFinalized: maybeFinalized, result: make(chan error, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return newVerifierError(QueueFull, errQueueClosed)
	}
	if len(p.queue) >= p.capacity {
		p.mu.Unlock()
		return newVerifierError(QueueFull, nil)
	}
	p.queue = append(p.queue, item)
	p.cond.Signal()
	p.mu.Unlock()

	select {
	case err := <-item.result:
		return err
	case <-p.ctx.Done():
		return newVerifierError(QueueFull, p.ctx.Err())
	}
}

// run is the single consumer loop: it always prefers the earliest-queued
// item whose parent is already known, falling back to strict FIFO order
// when none qualify.
func (p *Processor) run() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		idx := p.selectNextLocked()
		item := p.queue[idx]
		p.queue = append(p.queue[:idx], p.queue[idx+1:]...)
		p.mu.Unlock()

		item.result <- p.process(item)
	}
}

func (p *Processor) selectNextLocked() int {
	for i, item := range p.queue {
		if item.parentKnown(p.chain) {
			return i
		}
	}
	return 0
}

// process runs one block's verification and transition pipeline:
// the unviable-fork check, Deneb blob gating, state-transition, and
// fork-choice notification on success.
func (p *Processor) process(item *workItem) error {
	block := item.block
	finalized := p.chain.FinalizedCheckpoint()
	finalizedSlot := finalizedSlotFloor(finalized)

	if block.Slot <= finalizedSlot {
		return newVerifierError(UnviableFork, nil)
	}

	fork := forktypes.ForkAtEpoch(block.Epoch())
	blobs := item.blobs
	if fork >= params.Deneb && blobs == nil && block.HasBlobCommitments() {
		if p.blobQuarantine.HasBlobs(block) {
			blobs = p.blobQuarantine.PopBlobs(block.Root)
		} else {
			if err := p.blockQuarantine.Add(finalizedSlot, block, true); err != nil {
				return translateQuarantineErr(err)
			}
			return newVerifierError(MissingParent, nil)
		}
	}

	if !item.parentKnown(p.chain) {
		if err := p.blockQuarantine.Add(finalizedSlot, block, false); err != nil {
			return translateQuarantineErr(err)
		}
		return newVerifierError(MissingParent, nil)
	}

	if err := p.transition(p.ctx, block, blobs); err != nil {
		return newVerifierError(Invalid, err)
	}

	if err := p.chain.ReceiveBlock(block); err != nil {
		return newVerifierError(Invalid, err)
	}
	p.blockQuarantine.Remove(block.Root)
	blocksProcessed.WithLabelValues(item.source.String()).Inc()
	return nil
}

func translateQuarantineErr(err error) error {
	if err == quarantine.ErrUnviableFork {
		return newVerifierError(UnviableFork, nil)
	}
	return newVerifierError(MissingParent, err)
}

// finalizedSlotFloor approximates the finalized checkpoint's slot as the
// first slot of its epoch, the conservative lower bound blocks must clear.
func finalizedSlotFloor(cp forktypes.Checkpoint) uint64 {
	return cp.Epoch * params.BeaconConfig().SlotsPerEpoch
}
