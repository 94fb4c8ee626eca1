package p2p

import (
	"sort"
	"sync"

	"github.com/prysmaticlabs/go-bitfield"

	lru "github.com/hashicorp/golang-lru"
)

// peerScoreCacheSize bounds the hot peer-score cache, which mirrors
// upserts and removals; peer selection reads the authoritative map, not
// the cache.
const peerScoreCacheSize = 1024

// peerInfo is one connected peer's bookkeeping: its gossip score and the
// attestation-subnet bitfield advertised in its ENR/metadata, which
// bestForSubnet filters on. The range-sync and request-manager adapters
// select peers by score alone.
type peerInfo struct {
	id      string
	score   float64
	attnets bitfield.Bitvector64
}

// peerStore tracks every known peer's score and subnet metadata.
type peerStore struct {
	mu    sync.RWMutex
	peers map[string]*peerInfo
	hot   *lru.Cache
}

func newPeerStore() *peerStore {
	hot, err := lru.New(peerScoreCacheSize)
	if err != nil {
		panic(err) // only errors on a non-positive size, never the case here
	}
	return &peerStore{peers: make(map[string]*peerInfo), hot: hot}
}

// upsert adds or updates a peer's score and attnets bitfield.
func (s *peerStore) upsert(id string, score float64, attnets bitfield.Bitvector64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := &peerInfo{id: id, score: score, attnets: attnets}
	s.peers[id] = info
	s.hot.Add(id, info)
	peerScoreCacheGauge.Set(float64(s.hot.Len()))
}

// remove drops a peer, e.g. on disconnect.
func (s *peerStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	s.hot.Remove(id)
	peerScoreCacheGauge.Set(float64(s.hot.Len()))
}

// best returns up to n peer IDs, highest score first.
func (s *peerStore) best(n int) []string {
	s.mu.RLock()
	all := make([]*peerInfo, 0, len(s.peers))
	for _, p := range s.peers {
		all = append(all, p)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].id
	}
	return out
}

// bestForSubnet returns up to n peer IDs that advertise subnet in their
// attnets bitfield, highest score first, falling back to best() if none
// advertise it.
func (s *peerStore) bestForSubnet(n int, subnet uint64) []string {
	s.mu.RLock()
	var matching []*peerInfo
	for _, p := range s.peers {
		if subnet < uint64(p.attnets.Len()) && p.attnets.BitAt(subnet) {
			matching = append(matching, p)
		}
	}
	s.mu.RUnlock()

	if len(matching) == 0 {
		return s.best(n)
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].score > matching[j].score })
	if n > len(matching) {
		n = len(matching)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = matching[i].id
	}
	return out
}
