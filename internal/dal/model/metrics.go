package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryCounter = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Name: "dal_queries_total",
			Help: "Number of statements issued by the data access layer, by table, operation and outcome.",
		},
		[]string{"table", "op", "outcome"},
	)

	queryDuration = promauto.NewHistogramVec( //nolint:gochecknoglobals
		prometheus.HistogramOpts{
			Name:    "dal_query_duration_seconds",
			Help:    "Statement latency of the data access layer.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "op"},
	)
)

func observe(table, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	queryCounter.WithLabelValues(table, op, outcome).Inc()
	queryDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}
