package gossip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activeForksGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "beacon_gossip_active_forks",
	Help: "Count of consensus forks currently active in the gossip state.",
})
