package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carat_store_queries_total",
		Help: "Store queries by outcome (ok or error kind)",
	}, []string{"outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carat_store_query_duration_seconds",
		Help:    "Store query duration including row scanning",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carat_store_sessions_total",
		Help: "Store session lifecycle events",
	}, []string{"outcome"})

	reconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carat_store_reconnect_attempts_total",
		Help: "Reconnect attempts made by held sessions",
	})
)
