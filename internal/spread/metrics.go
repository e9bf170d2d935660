package spread

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntryComputationsTotal tracks entry spread computations by outcome.
	EntryComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_entry_computations_total",
			Help: "Total number of entry spread computations",
		},
		[]string{"outcome"},
	)

	// ExitComputationsTotal tracks exit spread computations by outcome.
	ExitComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_exit_computations_total",
			Help: "Total number of exit spread computations",
		},
		[]string{"outcome"},
	)

	// EntrySpreadPercent tracks observed entry spreads.
	EntrySpreadPercent = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basis_arb_entry_spread_percent",
		Help:    "Observed entry spread between futures weighted bid and spot weighted ask",
		Buckets: []float64{-5, -2, -1, -0.5, 0, 0.25, 0.5, 1, 2, 5, 10, 20},
	})

	// ExitSpreadPercent tracks observed exit spreads.
	ExitSpreadPercent = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basis_arb_exit_spread_percent",
		Help:    "Observed exit spread between spot weighted bid and futures weighted ask",
		Buckets: []float64{-5, -2, -1, -0.5, 0, 0.25, 0.5, 1, 2, 5, 10, 20},
	})
)
