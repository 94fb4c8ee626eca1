package rangesync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var batchesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "beacon_range_sync_batches_fetched_total",
	Help: "Count of block-range batches fetched, labeled by sync direction.",
}, []string{"direction"})
