package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_db_block_cache_hits_total",
		Help: "Count of block reads satisfied from the in-memory cache without touching the backing store.",
	})
	blockCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_db_block_cache_misses_total",
		Help: "Count of block reads that missed the in-memory cache and fetched from the backing store.",
	})
	checkpointsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_db_checkpoints_written_total",
		Help: "Count of DB checkpoint writes performed by the slot scheduler's onSlotEnd hook.",
	})
)
