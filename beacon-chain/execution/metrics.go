package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	payloadStatusCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_execution_payload_status_cache_hits_total",
		Help: "Count of NotifyNewPayload calls answered from the TTL cache without a round trip to the execution client.",
	})
	forkchoiceUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_execution_forkchoice_updated_total",
		Help: "Count of NotifyForkchoiceUpdated calls issued to the execution client.",
	})
)
