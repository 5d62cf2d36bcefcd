// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Command server runs the Sentinel security telemetry core.
//
// # Startup
//
// The server initializes components in order:
//
//  1. Configuration: koanf v2 (defaults, config.yaml, environment)
//  2. Logging: zerolog, plus the slog bridge for the supervisor
//  3. Audit store (memory or DuckDB), the asynchronous audit logger and
//     its optional BadgerDB WAL spool
//  4. Session store (memory, BadgerDB or Redis) and the session manager
//  5. Alert sinks (log, webhook, NATS, websocket stream) and the security monitor
//  6. HTTP API (Chi) and the suture supervisor tree
//
// # Supervision
//
//	sentinel
//	├── data-layer     audit-drain, session-cleanup, audit-wal-retry,
//	                   query-cache-cleanup
//	├── monitor-layer  monitor-sweep, alert-stream
//	└── api-layer      http-server
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests, the audit buffer is flushed to the store, and the
// WAL and stores are closed after the tree stops. Records still spooled in
// the WAL are replayed on the next start.
//
// # Example Usage
//
// Development, everything in memory:
//
//	LOG_FORMAT=console ./server
//
// Production with DuckDB audit storage, Redis sessions and a webhook:
//
//	export AUDIT_STORE=duckdb
//	export AUDIT_DUCKDB_PATH=/var/lib/sentinel/audit.duckdb
//	export AUDIT_WAL_ENABLED=true
//	export SESSION_STORE=redis
//	export REDIS_ADDRS=redis-1:6379,redis-2:6379
//	export ALERT_WEBHOOK_URL=https://hooks.example.com/sentinel
//	./server
package main
