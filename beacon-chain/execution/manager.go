// Package execution implements the ELManager boundary: the narrow surface
// the orchestrator uses to hand payloads to, and request payload
// production from, an external execution client over the Engine API. This
// package never imports a concrete execution client; PayloadExecutor is
// the swap point a real Engine API HTTP/IPC transport would implement.
package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prysmaticlabs/beacon-orchestrator/beacon-chain/forktypes"
	"go.opencensus.io/trace"
)

// PayloadStatus mirrors the Engine API's three-way NewPayload verdict.
type PayloadStatus int

const (
	Syncing PayloadStatus = iota
	Valid
	Invalid
)

// PayloadID identifies a payload-building job an earlier
// NotifyForkchoiceUpdated call started.
type PayloadID string

// PayloadExecutor is the transport-level collaborator: a real Engine API
// client, or a simulator in tests.
type PayloadExecutor interface {
	ExecutePayload(ctx context.Context, blockHash [32]byte) (PayloadStatus, error)
	ForkchoiceUpdated(ctx context.Context, headHash, safeHash, finalizedHash [32]byte) error
}

// defaultStatusCacheTTL bounds how long a NewPayload verdict is trusted
// without re-checking the execution client, short enough that a
// reorg-invalidated payload is never served stale for long.
const defaultStatusCacheTTL = 6 * time.Second

// Manager is the ELManager collaborator the ConsensusManager and
// SlotScheduler call into.
type Manager struct {
	executor   PayloadExecutor
	statusTTL  time.Duration
	statusCache *cache.Cache

	lastValidated bool
}

// NewManager constructs a Manager wrapping executor.
func NewManager(executor PayloadExecutor) *Manager {
	return &Manager{
		executor:    executor,
		statusTTL:   defaultStatusCacheTTL,
		statusCache: cache.New(defaultStatusCacheTTL, 2*defaultStatusCacheTTL),
	}
}

// NotifyNewPayload forwards a block's payload to the execution client,
// short-circuiting through a TTL cache keyed by block hash so a block
// re-verified within the window (e.g. re-broadcast across two subnets)
// doesn't re-hit the EL.
func (m *Manager) NotifyNewPayload(ctx context.Context, blockHash [32]byte) (PayloadStatus, error) {
	ctx, span := trace.StartSpan(ctx, "execution.NotifyNewPayload")
	defer span.End()

	key := string(blockHash[:])
	if v, ok := m.statusCache.Get(key); ok {
		payloadStatusCacheHits.Inc()
		span.AddAttributes(trace.BoolAttribute("cacheHit", true))
		status := v.(PayloadStatus)
		m.lastValidated = status == Valid
		return status, nil
	}
	span.AddAttributes(trace.BoolAttribute("cacheHit", false))

	status, err := m.executor.ExecutePayload(ctx, blockHash)
	if err != nil {
		return Syncing, err
	}
	m.statusCache.Set(key, status, m.statusTTL)
	m.lastValidated = status == Valid
	return status, nil
}

// NotifyForkchoiceUpdated informs the execution client of the current
// head/safe/finalized hashes and returns a locally-generated correlation
// ID for the payload-building job this call may start.
func (m *Manager) NotifyForkchoiceUpdated(ctx context.Context, head, safe, finalized forktypes.Root) (PayloadID, error) {
	ctx, span := trace.StartSpan(ctx, "execution.NotifyForkchoiceUpdated")
	defer span.End()
	forkchoiceUpdatedTotal.Inc()

	if err := m.executor.ForkchoiceUpdated(ctx, head, safe, finalized); err != nil {
		return "", err
	}
	id := PayloadID(uuid.New().String())
	log.WithField("payloadID", id).Debug("Forkchoice update acknowledged by execution client")
	return id, nil
}

// SyncedAndExecutionValid reports whether the most recently checked
// payload validated successfully, the collaborator the SlotScheduler's
// onSlotEnd step needs before prefetching next-epoch action-tracker data.
func (m *Manager) SyncedAndExecutionValid() bool {
	return m.lastValidated
}
