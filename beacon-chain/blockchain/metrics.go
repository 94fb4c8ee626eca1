package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	headSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_head_slot",
		Help: "Slot of the current canonical head block.",
	})
	reorgsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_reorgs_total",
		Help: "Count of head reorganizations detected by UpdateHead.",
	})
	reorgDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beacon_reorg_depth",
		Help:    "Depth in blocks of each detected reorg.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})
	dagNodesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_dag_nodes_pruned_total",
		Help: "Count of non-canonical blocks dropped by PruneFinalized.",
	})
	actionTrackerFastPath = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_action_tracker_fast_path_total",
		Help: "Count of epoch transitions that carried duty assignments forward instead of recomputing.",
	})
	actionTrackerFallback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_action_tracker_fallback_total",
		Help: "Count of epoch transitions that required a full EpochRef recomputation.",
	})
)
