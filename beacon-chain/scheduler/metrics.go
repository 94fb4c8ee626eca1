package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_current_slot",
		Help: "The wall-clock slot most recently observed by the slot loop.",
	})
	ticksDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beacon_second_loop_tick_delay_seconds",
		Help: "Deviation of the second loop's actual tick time from its scheduled time, surfacing event-loop starvation.",
	})
	secondLoopTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_second_loop_ticks_total",
		Help: "Count of second-loop ticks processed.",
	})
)
