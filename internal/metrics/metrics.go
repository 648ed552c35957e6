// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "ledger_operations_total",
			Help:      "Ledger mutations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	LedgerConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "ledger_conflict_retries_total",
			Help:      "Read-modify-write retries caused by concurrent updates.",
		},
		[]string{"operation"},
	)

	LedgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fintrack",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Latency of ledger mutations including lock wait.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ReconcileChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "reconcile_checks_total",
			Help:      "Account reconciliation checks by outcome (ok, drift, error).",
		},
		[]string{"outcome"},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "event_publish_failures_total",
			Help:      "Ledger events that could not be published.",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fintrack",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route", "method", "status"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected with 429.",
		},
	)

	SuspiciousRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fintrack",
			Name:      "suspicious_requests_total",
			Help:      "Requests matching a known probing pattern.",
		},
	)
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultError    = "error"
)
