package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	executedTxCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "polling",
		Subsystem: "ledger",
		Name:      "executed_tx_total",
		Help:      "The total amount of committed transactions.",
	})

	revertedTxCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "polling",
		Subsystem: "ledger",
		Name:      "reverted_tx_total",
		Help:      "The total amount of reverted transactions.",
	})

	emittedLogCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "polling",
		Subsystem: "ledger",
		Name:      "emitted_log_total",
		Help:      "The total amount of committed logs.",
	})

	headHeightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "polling",
		Subsystem: "ledger",
		Name:      "head_height",
		Help:      "Height of the latest mined block.",
	})
)

func init() {
	prometheus.MustRegister(executedTxCounter, revertedTxCounter, emittedLogCounter, headHeightGauge)
}
