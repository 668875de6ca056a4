package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts analyzed queries by result: ok, invalid, inconsistent, error
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chp_queries_total",
		Help: "Total analyzed queries by result",
	}, []string{"result"})

	// QueryDuration tracks end-to-end query analysis latency
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chp_query_duration_seconds",
		Help:    "Query analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	// TargetTasksTotal counts per-target tasks by outcome: ok, degraded, range, compute
	TargetTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chp_target_tasks_total",
		Help: "Total per-target evaluation tasks by outcome",
	}, []string{"outcome"})

	// FusionSNodes counts S-node events during fusion by kind
	FusionSNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chp_fusion_snodes_total",
		Help: "S-node merge events during fusion by kind",
	}, []string{"kind"})

	// FusionDuration tracks fusion latency
	FusionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chp_fusion_duration_seconds",
		Help:    "Fusion duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// HTTPRequestsTotal counts reasoner-std HTTP requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chp_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})
)
