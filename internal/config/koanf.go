// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sentinel/config.yaml",
	"/etc/sentinel/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8440,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			QueryCacheTTL:     15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Audit: AuditConfig{
			Enabled:         true,
			Store:           "memory",
			DuckDBPath:      "/data/sentinel-audit.duckdb",
			DuckDBMaxMemory: "1GB",
			BufferSize:      1000,
			WriteTimeout:    5 * time.Second,
			MemoryCapacity:  0,
			LogToStdout:     false,

			WALEnabled:       false,
			WALPath:          "/data/audit-wal",
			WALSyncWrites:    true,
			WALEntryTTL:      7 * 24 * time.Hour,
			WALMaxRetries:    100,
			WALRetryInterval: 30 * time.Second,
			WALRetryBackoff:  5 * time.Second,
			WALMaxBackoff:    5 * time.Minute,
		},
		Session: SessionConfig{
			Store:             "memory",
			BadgerPath:        "/data/sessions",
			RedisAddrs:        []string{"localhost:6379"},
			RedisPrefix:       "sentinel",
			TTL:               30 * 24 * time.Hour,
			CleanupInterval:   15 * time.Minute,
			AnalyticsDays:     30,
			LockStripes:       64,
			MaxActiveSessions: 5,
			MaxDistinctIPs:    3,
			RecentWindow:      time.Hour,
			MaxRecentSessions: 3,
		},
		Risk: RiskConfig{
			Window:             24 * time.Hour,
			MaxActions:         100,
			ActionsWeight:      30,
			MaxFailedLogins:    5,
			FailedLoginsWeight: 40,
			MaxDistinctIPs:     3,
			DistinctIPsWeight:  25,
			AdminWeight:        50,
			MaxExports:         2,
			ExportsWeight:      35,
			SuspiciousAbove:    50,
		},
		Monitor: MonitorConfig{
			Enabled:              true,
			Interval:             5 * time.Minute,
			SweepTimeout:         time.Minute,
			LockoutWindow:        time.Hour,
			MaxLockouts:          10,
			BruteForceWindow:     time.Hour,
			MaxFailedLoginsPerIP: 20,
			AdminWindow:          24 * time.Hour,
			MaxAdminActions:      50,
			DataAccessWindow:     24 * time.Hour,
			MaxDataExports:       10,
		},
		Alerts: AlertsConfig{
			LogEnabled:                true,
			StreamEnabled:             true,
			WebhookTimeout:            10 * time.Second,
			WebhookRateLimit:          2,
			WebhookBurst:              1,
			WebhookBreakerFailures:    5,
			WebhookBreakerTimeout:     30 * time.Second,
			WebhookBreakerMaxRequests: 1,
			NATSSubject:               "sentinel.alerts",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
// Loading order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml, or the path in CONFIG_PATH)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables. SESSION_STORE -> session.store
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, otherwise the first
// default path that exists, otherwise "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are keys whose environment values are comma-separated lists.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"session.redis_addrs",
}

// processSliceFields splits comma-separated string values into slices.
// Values that are already slices (from YAML) are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"query_cache_ttl":       "server.query_cache_ttl",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Audit
	"audit_enabled":            "audit.enabled",
	"audit_store":              "audit.store",
	"audit_duckdb_path":        "audit.duckdb_path",
	"audit_duckdb_threads":     "audit.duckdb_threads",
	"audit_duckdb_max_memory":  "audit.duckdb_max_memory",
	"audit_buffer_size":        "audit.buffer_size",
	"audit_write_timeout":      "audit.write_timeout",
	"audit_memory_capacity":    "audit.memory_capacity",
	"audit_log_to_stdout":      "audit.log_to_stdout",
	"audit_wal_enabled":        "audit.wal_enabled",
	"audit_wal_path":           "audit.wal_path",
	"audit_wal_sync_writes":    "audit.wal_sync_writes",
	"audit_wal_entry_ttl":      "audit.wal_entry_ttl",
	"audit_wal_max_retries":    "audit.wal_max_retries",
	"audit_wal_retry_interval": "audit.wal_retry_interval",
	"audit_wal_retry_backoff":  "audit.wal_retry_backoff",
	"audit_wal_max_backoff":    "audit.wal_max_backoff",

	// Session
	"session_store":               "session.store",
	"session_badger_path":         "session.badger_path",
	"redis_addrs":                 "session.redis_addrs",
	"redis_password":              "session.redis_password",
	"redis_db":                    "session.redis_db",
	"redis_prefix":                "session.redis_prefix",
	"session_ttl":                 "session.ttl",
	"session_cleanup_interval":    "session.cleanup_interval",
	"session_analytics_days":      "session.analytics_days",
	"session_max_active":          "session.max_active_sessions",
	"session_max_distinct_ips":    "session.max_distinct_ips",
	"session_recent_window":       "session.recent_window",
	"session_max_recent_sessions": "session.max_recent_sessions",

	// Risk
	"risk_window":               "risk.window",
	"risk_max_actions":          "risk.max_actions",
	"risk_max_failed_logins":    "risk.max_failed_logins",
	"risk_max_distinct_ips":     "risk.max_distinct_ips",
	"risk_max_exports":          "risk.max_exports",
	"risk_suspicious_threshold": "risk.suspicious_above",

	// Monitor
	"monitor_enabled":                  "monitor.enabled",
	"monitor_interval":                 "monitor.interval",
	"monitor_sweep_timeout":            "monitor.sweep_timeout",
	"monitor_max_lockouts":             "monitor.max_lockouts",
	"monitor_max_failed_logins_per_ip": "monitor.max_failed_logins_per_ip",
	"monitor_max_admin_actions":        "monitor.max_admin_actions",
	"monitor_max_data_exports":         "monitor.max_data_exports",

	// Alerts
	"alert_log_enabled":        "alerts.log_enabled",
	"alert_webhook_url":        "alerts.webhook_url",
	"alert_webhook_timeout":    "alerts.webhook_timeout",
	"alert_webhook_rate_limit": "alerts.webhook_rate_limit",
	"alert_nats_url":           "alerts.nats_url",
	"alert_nats_subject":       "alerts.nats_subject",
	"alert_stream_enabled":     "alerts.stream_enabled",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Returns "" for variables that should be ignored.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

// FilePath returns the config file LoadWithKoanf reads, or "" when there is none.
func FilePath() string {
	return findConfigFile()
}
