// internal/metrics/metrics.go

// Package metrics exposes Prometheus counters for the ledger operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts money-moving operations by kind and outcome.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "circlepool",
		Name:      "ledger_operations_total",
		Help:      "Ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})

	// Classifications counts completed asynchronous classification attempts,
	// successful or not.
	Classifications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "circlepool",
		Name:      "expense_classifications_total",
		Help:      "Completed asynchronous expense classification attempts.",
	})
)

// ObserveOperation records one operation outcome.
func ObserveOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Operations.WithLabelValues(operation, outcome).Inc()
}
