package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentEventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_received_total",
		Help: "Total number of payment notifications received",
	}, []string{"source"})

	PaymentEventsReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_reconciled_total",
		Help: "Total number of payment notifications processed, by result",
	}, []string{"result"})

	PaymentEventsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_rejected_total",
		Help: "Total number of payment notifications rejected before any side effect",
	}, []string{"reason"})

	CriticalStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_critical_step_failures_total",
		Help: "Total number of critical reconciliation step failures",
	}, []string{"step"})

	BestEffortFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_best_effort_failures_total",
		Help: "Total number of swallowed best-effort step failures",
	}, []string{"step"})

	IdempotencyLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idempotency_lookups_total",
		Help: "Idempotency guard decisions",
	}, []string{"result"})

	BatchRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_records_total",
		Help: "Total number of batch records handled, by result",
	}, []string{"result"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_latency_seconds",
		Help:    "Latency of a full payment reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	BookingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_request_duration_seconds",
		Help:    "Latency of calls to the booking service",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
