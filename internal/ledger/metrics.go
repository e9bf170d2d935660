package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PositionsOpenedTotal tracks positions opened.
	PositionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_positions_opened_total",
		Help: "Total number of positions opened",
	})

	// PositionIncreasesTotal tracks entry increases against live positions.
	PositionIncreasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_position_increases_total",
		Help: "Total number of position entry increases",
	})

	// PositionExitsTotal tracks partial and full exits applied.
	PositionExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_position_exits_total",
		Help: "Total number of position exits applied",
	})

	// PositionsClosedTotal tracks positions reaching the terminal state.
	PositionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_positions_closed_total",
		Help: "Total number of positions fully closed",
	})

	// ExitPnLUSDT tracks realized PnL per exit.
	ExitPnLUSDT = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "basis_arb_exit_pnl_usdt",
		Help:    "Realized PnL per exit in USDT",
		Buckets: []float64{-100, -50, -20, -5, 0, 5, 20, 50, 100, 250, 500},
	})

	// PersistenceRetriesTotal tracks retried funds-affecting writes.
	PersistenceRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_ledger_persistence_retries_total",
		Help: "Total number of retried ledger persistence operations",
	})

	// PersistenceFailuresTotal tracks funds-affecting writes that could
	// not commit after retries. Any non-zero value needs operator attention.
	PersistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "basis_arb_ledger_persistence_failures_total",
		Help: "Total number of ledger persistence operations that exhausted retries",
	})
)
