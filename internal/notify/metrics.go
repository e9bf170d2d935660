package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SentTotal counts delivered notifications per channel.
	SentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"sender"},
	)

	// SendFailuresTotal counts failed deliveries per channel.
	SendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basis_arb_notification_failures_total",
			Help: "Total number of failed notification deliveries",
		},
		[]string{"sender"},
	)
)
