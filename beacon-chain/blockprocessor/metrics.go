package blockprocessor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var blocksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "beacon_blocks_processed_total",
	Help: "Count of blocks that completed state-transition and were handed to fork-choice, labeled by source.",
}, []string{"source"})
