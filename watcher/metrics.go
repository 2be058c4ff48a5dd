package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	observedLogs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polling",
		Subsystem: "watcher",
		Name:      "observed_logs_total",
		Help:      "The total amount of handled poll logs by event.",
	}, []string{"event"})

	cursorGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "polling",
		Subsystem: "watcher",
		Name:      "cursor_block",
		Help:      "Block the watcher resumes from after a restart.",
	})
)

func init() {
	prometheus.MustRegister(observedLogs, cursorGauge)
}
