package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_eventbus_dropped_total",
		Help: "Count of buffered events dropped because a subscriber's queue was full, by topic. The bus drops the oldest buffered event to make room for the newest.",
	}, []string{"topic"})
	subscriberGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beacon_eventbus_subscribers",
		Help: "Count of active subscribers, by topic.",
	}, []string{"topic"})
)
