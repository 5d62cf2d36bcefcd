// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package config provides centralized configuration management for Sentinel.

Configuration is loaded with Koanf v2 in layers, each overriding the last:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, else config.yaml, config.yml,
    /etc/sentinel/config.yaml, /etc/sentinel/config.yml
 3. Environment variables, through an explicit name-to-key mapping

Comma-separated environment values for list settings (CORS_ORIGINS,
REDIS_ADDRS) are split into slices. The result is validated with struct tags
(go-playground/validator) and then cross-field rules.

# Sections

  - server: HTTP listener, timeouts, CORS, per-IP rate limit
  - logging: level, format, caller
  - audit: enabled, store (memory|duckdb), buffer, memory capacity, WAL spool
  - session: store (memory|badger|redis), TTL, cleanup interval, concurrency thresholds
  - risk: suspicious-activity scoring thresholds and weights
  - monitor: sweep interval and timeout, alert thresholds
  - alerts: log sink, webhook (rate limit, circuit breaker), NATS
  - supervisor: restart and shutdown behavior

# Environment Variables

Selected mappings (see envMappings for the full list):

  - HTTP_PORT, HTTP_HOST, CORS_ORIGINS, RATE_LIMIT_REQUESTS, QUERY_CACHE_TTL
  - LOG_LEVEL, LOG_FORMAT
  - AUDIT_STORE, AUDIT_DUCKDB_PATH, AUDIT_DUCKDB_THREADS,
    AUDIT_DUCKDB_MAX_MEMORY, AUDIT_BUFFER_SIZE, AUDIT_WAL_ENABLED, AUDIT_WAL_PATH
  - SESSION_STORE, SESSION_BADGER_PATH, REDIS_ADDRS, REDIS_PASSWORD, SESSION_TTL
  - RISK_SUSPICIOUS_THRESHOLD, RISK_MAX_FAILED_LOGINS
  - MONITOR_ENABLED, MONITOR_INTERVAL, MONITOR_SWEEP_TIMEOUT
  - ALERT_WEBHOOK_URL, ALERT_NATS_URL, ALERT_NATS_SUBJECT, ALERT_STREAM_ENABLED

# Conversion

Config exposes converters to the settings types of the packages it
configures: AuditConfig, RiskPolicy, SessionConfig, SessionStoreOptions,
MonitorThresholds, WebhookConfig, TreeConfig and LoggingSettings.
*/
package config
