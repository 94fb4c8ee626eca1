package gossip

import (
	"sync"
	"testing"

	"github.com/prysmaticlabs/beacon-orchestrator/shared/params"
	"github.com/stretchr/testify/require"
)

type fakeNetwork struct {
	mu     sync.Mutex
	active map[string]bool
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{active: make(map[string]bool)}
}

func (n *fakeNetwork) SubscribeTopic(topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active[topic] = true
	return nil
}

func (n *fakeNetwork) UnsubscribeTopic(topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, topic)
	return nil
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.active)
}

func baseConfig(net *fakeNetwork, wallSlot, headSlot uint64) Config {
	return Config{
		Network:                  net,
		ForkDigest:               func(fork params.Fork) string { return fork.String() },
		HeadSlot:                 func() uint64 { return headSlot },
		WallSlot:                 func() uint64 { return wallSlot },
		ShouldSyncOptimistically: func() bool { return false },
		AggregateSubnets:         func() []uint64 { return nil },
		StabilitySubnets:         func() []uint64 { return nil },
	}
}

func TestController_IsBehindHonorsHysteresis(t *testing.T) {
	net := newFakeNetwork()
	c := New(baseConfig(net, 100, 100-64-16))
	require.False(t, c.IsBehind())

	c2 := New(baseConfig(net, 200, 200-64-17))
	require.True(t, c2.IsBehind())
}

func TestController_SubscribesPhase0TopicsWhenCaughtUp(t *testing.T) {
	net := newFakeNetwork()
	cfg := params.MinimalConfig().Copy()
	const farFutureEpoch = ^uint64(0)
	cfg.AltairForkEpoch = 10
	cfg.BellatrixForkEpoch = farFutureEpoch
	cfg.CapellaForkEpoch = farFutureEpoch
	cfg.DenebForkEpoch = farFutureEpoch
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	c := New(baseConfig(net, 0, 0))
	c.Update(0)

	require.Equal(t, map[params.Fork]bool{params.Phase0: true}, c.ActiveForks())
	require.True(t, net.count() > 0)
}

func TestController_CoexistsAcrossForkTransitionEpoch(t *testing.T) {
	net := newFakeNetwork()
	cfg := params.MinimalConfig().Copy()
	// Far-future sentinel: only Altair's epoch is under test, so later forks
	// must not also be active at epoch 0 the way MinimalConfig's all-zero
	// schedule would otherwise make them.
	const farFutureEpoch = ^uint64(0)
	cfg.AltairForkEpoch = 5
	cfg.BellatrixForkEpoch = farFutureEpoch
	cfg.CapellaForkEpoch = farFutureEpoch
	cfg.DenebForkEpoch = farFutureEpoch
	params.OverrideBeaconConfig(cfg)
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	c := New(baseConfig(net, 0, 0))
	// epoch 4 is AltairForkEpoch-1, the epoch immediately preceding the
	// transition, where the outgoing and incoming forks coexist.
	c.Update(4)

	forks := c.ActiveForks()
	require.Len(t, forks, 2)
	require.True(t, forks[params.Phase0])
	require.True(t, forks[params.Altair])
}

func TestController_UnsubscribesEverythingWhileBehind(t *testing.T) {
	net := newFakeNetwork()
	c := New(baseConfig(net, 1000, 0))
	c.Update(0)

	require.Empty(t, c.ActiveForks())
	require.Equal(t, 0, net.count())
}

func TestController_AttestationSubnetsUnionAggregateAndStability(t *testing.T) {
	net := newFakeNetwork()
	cfg := baseConfig(net, 0, 0)
	cfg.AggregateSubnets = func() []uint64 { return []uint64{1, 2} }
	cfg.StabilitySubnets = func() []uint64 { return []uint64{2, 3} }
	c := New(cfg)
	c.Update(0)

	require.Equal(t, map[uint64]bool{1: true, 2: true, 3: true}, c.attestationSubnets)
}
