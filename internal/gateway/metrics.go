package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDurationSeconds tracks exchange REST call latency.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basis_arb_gateway_request_duration_seconds",
			Help:    "Duration of exchange REST requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"exchange", "endpoint"},
	)

	// RequestErrorsTotal counts failed exchange REST calls.
	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_gateway_request_errors_total",
			Help: "Total number of failed exchange REST requests",
		},
		[]string{"exchange", "endpoint"},
	)

	// MinAmountCacheHitsTotal counts minimum trade amount cache hits.
	MinAmountCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basis_arb_gateway_min_amount_cache_hits_total",
			Help: "Total number of minimum trade amount cache hits",
		},
	)

	// MinAmountCacheMissesTotal counts minimum trade amount cache misses.
	MinAmountCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basis_arb_gateway_min_amount_cache_misses_total",
			Help: "Total number of minimum trade amount cache misses",
		},
	)
)
