// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry at package init and
// served by promhttp on /metrics.

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_db_query_duration_seconds",
			Help:    "Duration of storage queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_db_query_errors_total",
			Help: "Total number of storage query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Audit Pipeline Metrics
	AuditRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_audit_records_written_total",
			Help: "Total number of audit records persisted",
		},
		[]string{"kind"}, // "entry", "security_event"
	)

	AuditRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_audit_records_failed_total",
			Help: "Total number of audit records that failed to persist",
		},
		[]string{"kind"},
	)

	AuditRecordsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_audit_records_evicted_total",
			Help: "Total number of audit records evicted from a bounded memory store",
		},
		[]string{"kind"},
	)

	AuditRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_audit_records_dropped_total",
			Help: "Total number of audit records dropped because the buffer was full",
		},
		[]string{"kind"},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_audit_queue_depth",
			Help: "Current number of audit records waiting to be written",
		},
	)

	AuditReportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_audit_report_duration_seconds",
			Help:    "Duration of audit report generation in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	RiskAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_risk_assessments_total",
			Help: "Total number of user risk assessments",
		},
		[]string{"outcome"}, // "suspicious", "clear"
	)

	// Session Metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_sessions_revoked_total",
			Help: "Total number of sessions revoked",
		},
		[]string{"reason"},
	)

	SessionValidityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_session_validity_checks_total",
			Help: "Total number of session validity checks",
		},
		[]string{"result"}, // "valid", "invalid", "expired"
	)

	SessionIPChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_session_ip_changes_total",
			Help: "Total number of heartbeats that reported a new IP address",
		},
	)

	SessionCleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_session_cleanup_runs_total",
			Help: "Total number of expired-session cleanup runs",
		},
		[]string{"status"},
	)

	// Monitor Metrics
	MonitorSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_monitor_sweeps_total",
			Help: "Total number of security monitor sweeps",
		},
		[]string{"status"}, // "success", "partial", "canceled"
	)

	MonitorSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_monitor_sweep_duration_seconds",
			Help:    "Duration of security monitor sweeps in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	MonitorCheckFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_monitor_check_failures_total",
			Help: "Total number of failed monitor checks",
		},
		[]string{"check"},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_emitted_total",
			Help: "Total number of security alerts emitted",
		},
		[]string{"check", "severity"},
	)

	AlertDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alert_delivery_failures_total",
			Help: "Total number of alert deliveries that failed",
		},
		[]string{"sink"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_nats_messages_published_total",
			Help: "Total number of alert messages published to NATS",
		},
	)

	AlertStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_alert_stream_clients",
			Help: "Current number of connected alert stream clients",
		},
	)

	AlertStreamDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_alert_stream_dropped_total",
			Help: "Alert stream messages dropped for slow or departed clients",
		},
	)

	QueryCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_query_cache_requests_total",
			Help: "Query cache lookups by result",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a storage query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAuditWrite records the outcome of persisting one audit record.
func RecordAuditWrite(kind string, err error) {
	if err != nil {
		AuditRecordsFailed.WithLabelValues(kind).Inc()
		return
	}
	AuditRecordsWritten.WithLabelValues(kind).Inc()
}

// RecordAuditDropped records a record dropped on a full buffer.
// RecordAuditEvicted records n records evicted from a bounded memory store.
func RecordAuditEvicted(kind string, n int) {
	AuditRecordsEvicted.WithLabelValues(kind).Add(float64(n))
}

func RecordAuditDropped(kind string) {
	AuditRecordsDropped.WithLabelValues(kind).Inc()
}

// RecordRiskAssessment records a risk assessment outcome.
func RecordRiskAssessment(suspicious bool) {
	if suspicious {
		RiskAssessments.WithLabelValues("suspicious").Inc()
		return
	}
	RiskAssessments.WithLabelValues("clear").Inc()
}

// RecordSessionRevoked records a session revocation.
func RecordSessionRevoked(reason string) {
	SessionsRevoked.WithLabelValues(reason).Inc()
}

// RecordSessionValidity records a validity check result.
func RecordSessionValidity(result string) {
	SessionValidityChecks.WithLabelValues(result).Inc()
}

// RecordSessionCleanup records a cleanup run.
func RecordSessionCleanup(err error) {
	if err != nil {
		SessionCleanupRuns.WithLabelValues("error").Inc()
		return
	}
	SessionCleanupRuns.WithLabelValues("success").Inc()
}

// RecordMonitorSweep records a finished monitor sweep.
func RecordMonitorSweep(status string, duration time.Duration) {
	MonitorSweeps.WithLabelValues(status).Inc()
	MonitorSweepDuration.Observe(duration.Seconds())
}

// RecordMonitorCheckFailure records a failed monitor check.
func RecordMonitorCheckFailure(check string) {
	MonitorCheckFailures.WithLabelValues(check).Inc()
}

// RecordAlert records an emitted alert.
func RecordAlert(check, severity string) {
	AlertsEmitted.WithLabelValues(check, severity).Inc()
}

// RecordAlertDeliveryFailure records a failed delivery to a sink.
func RecordAlertDeliveryFailure(sink string) {
	AlertDeliveryFailures.WithLabelValues(sink).Inc()
}

// RecordCircuitBreakerTransition records a state change and updates the state gauge.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(circuitStateValue(to))
}

func circuitStateValue(state string) float64 {
	switch strings.ToLower(state) {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCacheLookup records a query cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	QueryCacheRequests.WithLabelValues(cache, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
