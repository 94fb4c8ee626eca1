package p2p

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeTopics = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_p2p_active_topics",
		Help: "Count of gossip topics currently subscribed.",
	})
	peerScoreCacheGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_p2p_peer_score_cache_size",
		Help: "Count of peers with a hot score-cache entry.",
	})
)
