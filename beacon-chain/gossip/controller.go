// Package gossip implements the GossipController state machine: which
// fork-specific and subnet topics the node is subscribed to, driven by
// sync status and the current duty set. Ownership is exclusive to the
// single-threaded SlotScheduler per spec.md's DATA MODEL section.
package gossip

import (
	"fmt"
	"sync"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
)

// Network is the narrow NETWORK boundary the controller drives: topic
// subscribe/unsubscribe, keyed by fully-qualified topic string (fork
// digest + message name baked in by the caller's topic-name function).
// Concrete pubsub wiring (libp2p-pubsub) belongs to the p2p package and is
// never imported here.
type Network interface {
	SubscribeTopic(topic string) error
	UnsubscribeTopic(topic string) error
}

// Config bundles the Controller's collaborators. ForkDigest, HeadSlot,
// WallSlot, AggregateSubnets, and StabilitySubnets are all callbacks into
// collaborators outside this package's scope (CONSENSUS_SPEC / duty
// dispatcher / sync manager).
type Config struct {
	Network                  Network
	ForkDigest               func(fork params.Fork) string
	HeadSlot                 func() uint64
	WallSlot                 func() uint64
	ShouldSyncOptimistically func() bool
	AggregateSubnets         func() []uint64
	StabilitySubnets         func() []uint64
}

// Controller is the C7 GossipController.
type Controller struct {
	cfg Config

	mu                   sync.Mutex
	activeForks          map[params.Fork]bool // current GossipState, card <= 2
	blocksActive         bool
	attestationSubnets   map[uint64]bool
	syncCommitteeSubnets map[uint64]bool
	blobSubnets          map[uint64]bool
	lastSyncPeriod       uint64
	lastSyncPeriodSet    bool
}

// New constructs a Controller with no active topics; the first Update call
// subscribes according to current sync status.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:                  cfg,
		activeForks:          make(map[params.Fork]bool),
		attestationSubnets:   make(map[uint64]bool),
		syncCommitteeSubnets: make(map[uint64]bool),
		blobSubnets:          make(map[uint64]bool),
	}
}

// IsBehind reports whether the node trails the wall clock by more than the
// sync-stale threshold plus hysteresis band, per spec.md §4.7.
func (c *Controller) IsBehind() bool {
	cfg := params.BeaconConfig()
	wall, head := c.cfg.WallSlot(), c.cfg.HeadSlot()
	if wall <= head {
		return false
	}
	return wall-head > cfg.SyncStaleSlots+cfg.SyncHysteresisSlots
}

// isBehindForBlocks allows blocks-gossip to stay subscribed while the node
// optimistically syncs, even though it is formally behind.
func (c *Controller) isBehindForBlocks() bool {
	return c.IsBehind() && !c.cfg.ShouldSyncOptimistically()
}

// targetGossipState computes the set of forks that should be active given
// epoch and sync status: empty while behind, else the current fork plus
// the next one during its transition epoch, and never more than two.
func targetGossipState(epoch uint64, behind bool) map[params.Fork]bool {
	if behind {
		return map[params.Fork]bool{}
	}
	current := epochFork(epoch)
	target := map[params.Fork]bool{current: true}
	if next := epochFork(epoch + 1); next != current {
		target[next] = true
	}
	return target
}

func epochFork(epoch uint64) params.Fork {
	cfg := params.BeaconConfig()
	switch {
	case epoch >= cfg.DenebForkEpoch:
		return params.Deneb
	case epoch >= cfg.CapellaForkEpoch:
		return params.Capella
	case epoch >= cfg.BellatrixForkEpoch:
		return params.Bellatrix
	case epoch >= cfg.AltairForkEpoch:
		return params.Altair
	default:
		return params.Phase0
	}
}

// Update re-evaluates gossip subscriptions for wallEpoch: diffs the active
// fork set against the target, adds/removes blocks-gossip independently,
// and refreshes attestation subnets, plus blob subnets when Deneb is in the
// target set. Sync-committee subnets are refreshed separately by
// UpdateSyncCommitteeSubnets. Called once per slot by the SlotScheduler.
func (c *Controller) Update(wallEpoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	behind := c.IsBehind()
	target := targetGossipState(wallEpoch, behind)

	for fork := range c.activeForks {
		if !target[fork] {
			c.removeForkLocked(fork)
		}
	}
	for fork := range target {
		if !c.activeForks[fork] {
			c.addForkLocked(fork)
		}
	}
	c.activeForks = target
	activeForksGauge.Set(float64(len(target)))

	c.updateBlocksGossipLocked()
	c.updateAttestationSubnetsLocked()
	if target[params.Deneb] {
		c.updateBlobSubnetsLocked()
	}
}

func (c *Controller) addForkLocked(fork params.Fork) {
	digest := c.cfg.ForkDigest(fork)
	for _, name := range staticTopicsForFork(fork) {
		topic := topicName(digest, name)
		if err := c.cfg.Network.SubscribeTopic(topic); err != nil {
			log.WithError(err).WithField("topic", topic).Error("Could not subscribe to topic")
			continue
		}
	}
	log.WithField("fork", fork.String()).Debug("Gossip fork activated")
}

func (c *Controller) removeForkLocked(fork params.Fork) {
	digest := c.cfg.ForkDigest(fork)
	for _, name := range staticTopicsForFork(fork) {
		topic := topicName(digest, name)
		if err := c.cfg.Network.UnsubscribeTopic(topic); err != nil {
			log.WithError(err).WithField("topic", topic).Error("Could not unsubscribe from topic")
		}
	}
	log.WithField("fork", fork.String()).Debug("Gossip fork deactivated")
}

// updateBlocksGossipLocked subscribes/unsubscribes the blocks topic across
// every active fork independently of the rest of the state machine, since
// optimistic sync needs blocks while otherwise behind.
func (c *Controller) updateBlocksGossipLocked() {
	shouldBeActive := !c.isBehindForBlocks()
	if shouldBeActive == c.blocksActive {
		return
	}
	for fork := range c.activeForks {
		digest := c.cfg.ForkDigest(fork)
		topic := topicName(digest, "beacon_block")
		if shouldBeActive {
			_ = c.cfg.Network.SubscribeTopic(topic)
		} else {
			_ = c.cfg.Network.UnsubscribeTopic(topic)
		}
	}
	c.blocksActive = shouldBeActive
}

func (c *Controller) updateAttestationSubnetsLocked() {
	wanted := make(map[uint64]bool)
	for _, s := range c.cfg.AggregateSubnets() {
		wanted[s] = true
	}
	for _, s := range c.cfg.StabilitySubnets() {
		wanted[s] = true
	}
	digest := c.currentDigestLocked()
	for subnet := range c.attestationSubnets {
		if !wanted[subnet] {
			_ = c.cfg.Network.UnsubscribeTopic(subnetTopic(digest, "beacon_attestation", subnet))
		}
	}
	for subnet := range wanted {
		if !c.attestationSubnets[subnet] {
			_ = c.cfg.Network.SubscribeTopic(subnetTopic(digest, "beacon_attestation", subnet))
		}
	}
	c.attestationSubnets = wanted
}

// UpdateSyncCommitteeSubnets recomputes sync-committee subnet subscriptions
// when the sync-committee period changes, or unconditionally if nearby is
// true (the epoch approaching a period boundary, per spec.md §4.7).
func (c *Controller) UpdateSyncCommitteeSubnets(period uint64, nearby bool, subnets []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSyncPeriodSet && period == c.lastSyncPeriod && !nearby {
		return
	}
	wanted := make(map[uint64]bool, len(subnets))
	for _, s := range subnets {
		wanted[s] = true
	}
	digest := c.currentDigestLocked()
	for subnet := range c.syncCommitteeSubnets {
		if !wanted[subnet] {
			_ = c.cfg.Network.UnsubscribeTopic(subnetTopic(digest, "sync_committee", subnet))
		}
	}
	for subnet := range wanted {
		if !c.syncCommitteeSubnets[subnet] {
			_ = c.cfg.Network.SubscribeTopic(subnetTopic(digest, "sync_committee", subnet))
		}
	}
	c.syncCommitteeSubnets = wanted
	c.lastSyncPeriod = period
	c.lastSyncPeriodSet = true
}

func (c *Controller) updateBlobSubnetsLocked() {
	digest := c.currentDigestLocked()
	n := blobSubnetCount()
	for i := uint64(0); i < n; i++ {
		if !c.blobSubnets[i] {
			_ = c.cfg.Network.SubscribeTopic(subnetTopic(digest, "blob_sidecar", i))
			c.blobSubnets[i] = true
		}
	}
}

func (c *Controller) currentDigestLocked() string {
	for fork := range c.activeForks {
		if fork == paramsMax(c.activeForks) {
			return c.cfg.ForkDigest(fork)
		}
	}
	return c.cfg.ForkDigest(params.Phase0)
}

func paramsMax(forks map[params.Fork]bool) params.Fork {
	max := params.Phase0
	for f := range forks {
		if f > max {
			max = f
		}
	}
	return max
}

func topicName(digest, name string) string {
	return fmt.Sprintf("/eth2/%s/%s", digest, name)
}

func subnetTopic(digest, name string, subnet uint64) string {
	return fmt.Sprintf("/eth2/%s/%s_%d", digest, name, subnet)
}

// ActiveForks returns the current GossipState, for tests and diagnostics.
func (c *Controller) ActiveForks() map[params.Fork]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[params.Fork]bool, len(c.activeForks))
	for f := range c.activeForks {
		out[f] = true
	}
	return out
}
