package duties

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dutiesSigned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_duties_signed_total",
		Help: "Count of duties signed and broadcast, by kind.",
	}, []string{"kind"})
	nextActionWait = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_duty_next_action_wait_seconds",
		Help: "Seconds until this validator's next scheduled duty.",
	})
	doppelgangerLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_doppelganger_live_validators",
		Help: "Count of attached validators that have cleared doppelganger detection.",
	})
)
