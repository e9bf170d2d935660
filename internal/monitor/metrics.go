package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts monitoring cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_monitor_cycles_total",
			Help: "Total number of monitoring cycles",
		},
		[]string{"outcome"},
	)

	// CycleDurationSeconds tracks full-cycle latency.
	CycleDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basis_arb_monitor_cycle_duration_seconds",
			Help:    "Duration of monitoring cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PairCheckErrorsTotal counts failed pair checks per symbol.
	PairCheckErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_monitor_pair_check_errors_total",
			Help: "Total number of failed pair checks",
		},
		[]string{"symbol"},
	)

	// OpportunitiesTotal counts detected opportunities per symbol and side.
	OpportunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_monitor_opportunities_total",
			Help: "Total number of detected spread opportunities",
		},
		[]string{"symbol", "side"},
	)

	// TradesTotal counts executed trades by kind and outcome.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_monitor_trades_total",
			Help: "Total number of trade executions",
		},
		[]string{"kind", "outcome"},
	)

	// ActivePositions tracks the number of non-terminal positions.
	ActivePositions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "basis_arb_monitor_active_positions",
			Help: "Number of open or partially closed positions",
		},
	)
)
