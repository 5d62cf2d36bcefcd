// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package metrics provides Prometheus metrics for the telemetry core.

All collectors are created with promauto and registered on the default
registry. The API layer exposes them at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Audit pipeline:
  - sentinel_audit_records_written_total{kind}
  - sentinel_audit_records_failed_total{kind}
  - sentinel_audit_records_dropped_total{kind}
  - sentinel_audit_records_evicted_total{kind}
  - sentinel_audit_queue_depth
  - sentinel_audit_report_duration_seconds
  - sentinel_risk_assessments_total{outcome}

Sessions:
  - sentinel_sessions_created_total
  - sentinel_sessions_revoked_total{reason}
  - sentinel_session_validity_checks_total{result}
  - sentinel_session_ip_changes_total
  - sentinel_session_cleanup_runs_total{status}

Monitor and alerting:
  - sentinel_monitor_sweeps_total{status}
  - sentinel_monitor_sweep_duration_seconds
  - sentinel_monitor_check_failures_total{check}
  - sentinel_alerts_emitted_total{check,severity}
  - sentinel_alert_delivery_failures_total{sink}
  - sentinel_circuit_breaker_state{name}
  - sentinel_nats_messages_published_total
  - sentinel_alert_stream_clients
  - sentinel_alert_stream_dropped_total

Storage and API:
  - sentinel_db_query_duration_seconds{operation,table}
  - sentinel_db_query_errors_total{operation,table,error_type}
  - sentinel_api_requests_total{method,endpoint,status_code}
  - sentinel_api_request_duration_seconds{method,endpoint}
  - sentinel_api_active_requests
  - sentinel_api_rate_limit_hits_total{endpoint}
  - sentinel_query_cache_requests_total{cache,result}

The audit WAL registers its own sentinel_wal_* collectors in package wal.

# Usage

Components call the Record* helpers rather than touching collectors:

	start := time.Now()
	err := store.SaveEntry(ctx, entry)
	metrics.RecordDBQuery("insert", "audit_entries", time.Since(start), err)

Label values are bounded: operation and table names are constants, and
error labels are truncated to 50 characters.
*/
package metrics
