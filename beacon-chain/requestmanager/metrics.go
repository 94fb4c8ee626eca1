package requestmanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsResolved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "beacon_request_manager_resolved_total",
	Help: "Count of by-root block/blob requests that resulted in a block handed to the processor.",
})
