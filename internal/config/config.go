// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/audit"
	"github.com/tomtom215/sentinel/internal/database"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/monitor"
	"github.com/tomtom215/sentinel/internal/session"
	"github.com/tomtom215/sentinel/internal/supervisor"
	"github.com/tomtom215/sentinel/internal/wal"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: override any mapped setting
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := audit.NewLogger(store, cfg.AuditConfig(), nil)
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Audit      AuditConfig      `koanf:"audit"`
	Session    SessionConfig    `koanf:"session"`
	Risk       RiskConfig       `koanf:"risk"`
	Monitor    MonitorConfig    `koanf:"monitor"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	// QueryCacheTTL caches security overviews and closed-range audit
	// reports. Zero disables the cache.
	QueryCacheTTL time.Duration `koanf:"query_cache_ttl"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// AuditConfig holds audit logger and store settings.
type AuditConfig struct {
	Enabled bool `koanf:"enabled"`

	// Store is the backing store: memory or duckdb.
	Store      string `koanf:"store" validate:"oneof=memory duckdb"`
	DuckDBPath string `koanf:"duckdb_path"`

	// DuckDBThreads is the DuckDB worker count. Zero uses every CPU.
	DuckDBThreads   int    `koanf:"duckdb_threads" validate:"min=0"`
	DuckDBMaxMemory string `koanf:"duckdb_max_memory"`

	BufferSize   int           `koanf:"buffer_size" validate:"min=1"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// MemoryCapacity bounds the memory store. Zero, the default, keeps
	// everything; a bound evicts the oldest records with a warning and
	// sentinel_audit_records_evicted_total.
	MemoryCapacity int  `koanf:"memory_capacity" validate:"min=0"`
	LogToStdout    bool `koanf:"log_to_stdout"`

	// WAL spools records the store rejected or the buffer could not hold.
	WALEnabled       bool          `koanf:"wal_enabled"`
	WALPath          string        `koanf:"wal_path"`
	WALSyncWrites    bool          `koanf:"wal_sync_writes"`
	WALEntryTTL      time.Duration `koanf:"wal_entry_ttl"`
	WALMaxRetries    int           `koanf:"wal_max_retries" validate:"min=1"`
	WALRetryInterval time.Duration `koanf:"wal_retry_interval"`
	WALRetryBackoff  time.Duration `koanf:"wal_retry_backoff"`
	WALMaxBackoff    time.Duration `koanf:"wal_max_backoff"`
}

// SessionConfig holds session manager and store settings.
type SessionConfig struct {
	// Store is the backing store: memory, badger or redis.
	Store      string `koanf:"store" validate:"oneof=memory badger redis"`
	BadgerPath string `koanf:"badger_path"`

	RedisAddrs    []string `koanf:"redis_addrs"`
	RedisPassword string   `koanf:"redis_password"`
	RedisDB       int      `koanf:"redis_db" validate:"min=0"`
	RedisPrefix   string   `koanf:"redis_prefix"`

	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	AnalyticsDays   int           `koanf:"analytics_days" validate:"min=1"`
	LockStripes     int           `koanf:"lock_stripes" validate:"min=1"`

	MaxActiveSessions int           `koanf:"max_active_sessions" validate:"min=1"`
	MaxDistinctIPs    int           `koanf:"max_distinct_ips" validate:"min=1"`
	RecentWindow      time.Duration `koanf:"recent_window"`
	MaxRecentSessions int           `koanf:"max_recent_sessions" validate:"min=1"`
}

// RiskConfig holds the suspicious-activity scoring thresholds and weights.
type RiskConfig struct {
	Window time.Duration `koanf:"window"`

	MaxActions         int `koanf:"max_actions" validate:"min=0"`
	ActionsWeight      int `koanf:"actions_weight" validate:"min=0,max=100"`
	MaxFailedLogins    int `koanf:"max_failed_logins" validate:"min=0"`
	FailedLoginsWeight int `koanf:"failed_logins_weight" validate:"min=0,max=100"`
	MaxDistinctIPs     int `koanf:"max_distinct_ips" validate:"min=0"`
	DistinctIPsWeight  int `koanf:"distinct_ips_weight" validate:"min=0,max=100"`
	AdminWeight        int `koanf:"admin_weight" validate:"min=0,max=100"`
	MaxExports         int `koanf:"max_exports" validate:"min=0"`
	ExportsWeight      int `koanf:"exports_weight" validate:"min=0,max=100"`
	SuspiciousAbove    int `koanf:"suspicious_above" validate:"min=0,max=100"`
}

// MonitorConfig holds security monitor settings.
type MonitorConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval"`
	SweepTimeout time.Duration `koanf:"sweep_timeout"`

	LockoutWindow        time.Duration `koanf:"lockout_window"`
	MaxLockouts          int           `koanf:"max_lockouts" validate:"min=0"`
	BruteForceWindow     time.Duration `koanf:"brute_force_window"`
	MaxFailedLoginsPerIP int           `koanf:"max_failed_logins_per_ip" validate:"min=0"`
	AdminWindow          time.Duration `koanf:"admin_window"`
	MaxAdminActions      int           `koanf:"max_admin_actions" validate:"min=0"`
	DataAccessWindow     time.Duration `koanf:"data_access_window"`
	MaxDataExports       int           `koanf:"max_data_exports" validate:"min=0"`
}

// AlertsConfig holds alert sink settings. Every enabled sink receives every alert.
type AlertsConfig struct {
	LogEnabled bool `koanf:"log_enabled"`

	WebhookURL                string            `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookHeaders            map[string]string `koanf:"webhook_headers"`
	WebhookTimeout            time.Duration     `koanf:"webhook_timeout"`
	WebhookRateLimit          float64           `koanf:"webhook_rate_limit" validate:"min=0"`
	WebhookBurst              int               `koanf:"webhook_burst" validate:"min=1"`
	WebhookBreakerFailures    uint32            `koanf:"webhook_breaker_failures" validate:"min=1"`
	WebhookBreakerTimeout     time.Duration     `koanf:"webhook_breaker_timeout"`
	WebhookBreakerMaxRequests uint32            `koanf:"webhook_breaker_max_requests" validate:"min=1"`

	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// StreamEnabled serves alerts to websocket clients at /api/v1/alerts/stream.
	StreamEnabled bool `koanf:"stream_enabled"`
}

// SupervisorConfig holds supervisor tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingSettings converts to the logging package configuration.
func (c *Config) LoggingSettings() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// AuditConfig converts to the audit logger configuration.
func (c *Config) AuditConfig() *audit.Config {
	return &audit.Config{
		Enabled:      c.Audit.Enabled,
		BufferSize:   c.Audit.BufferSize,
		WriteTimeout: c.Audit.WriteTimeout,
		LogToStdout:  c.Audit.LogToStdout,
		Risk:         c.RiskPolicy(),
	}
}

// RiskPolicy converts the risk section to audit scoring thresholds.
func (c *Config) RiskPolicy() audit.RiskPolicy {
	r := c.Risk
	return audit.RiskPolicy{
		Window:             r.Window,
		MaxActions:         r.MaxActions,
		ActionsWeight:      r.ActionsWeight,
		MaxFailedLogins:    r.MaxFailedLogins,
		FailedLoginsWeight: r.FailedLoginsWeight,
		MaxDistinctIPs:     r.MaxDistinctIPs,
		DistinctIPsWeight:  r.DistinctIPsWeight,
		AdminWeight:        r.AdminWeight,
		MaxExports:         r.MaxExports,
		ExportsWeight:      r.ExportsWeight,
		SuspiciousAbove:    r.SuspiciousAbove,
	}
}

// SessionConfig converts to the session manager configuration.
func (c *Config) SessionConfig() *session.Config {
	s := c.Session
	return &session.Config{
		TTL: s.TTL,
		Concurrency: session.ConcurrencyPolicy{
			MaxActiveSessions: s.MaxActiveSessions,
			MaxDistinctIPs:    s.MaxDistinctIPs,
			RecentWindow:      s.RecentWindow,
			MaxRecentSessions: s.MaxRecentSessions,
		},
		AnalyticsDays: s.AnalyticsDays,
		LockStripes:   s.LockStripes,
	}
}

// SessionStoreOptions converts to session store factory options.
func (c *Config) SessionStoreOptions() session.StoreOptions {
	s := c.Session
	return session.StoreOptions{
		Type:          session.StoreType(s.Store),
		BadgerPath:    s.BadgerPath,
		RedisAddrs:    s.RedisAddrs,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		RedisPrefix:   s.RedisPrefix,
	}
}

// MonitorThresholds converts to monitor thresholds.
func (c *Config) MonitorThresholds() monitor.Thresholds {
	m := c.Monitor
	return monitor.Thresholds{
		LockoutWindow:        m.LockoutWindow,
		MaxLockouts:          m.MaxLockouts,
		BruteForceWindow:     m.BruteForceWindow,
		MaxFailedLoginsPerIP: m.MaxFailedLoginsPerIP,
		AdminWindow:          m.AdminWindow,
		MaxAdminActions:      m.MaxAdminActions,
		DataAccessWindow:     m.DataAccessWindow,
		MaxDataExports:       m.MaxDataExports,
	}
}

// WebhookConfig converts to the webhook sink configuration.
// The second result is false when no webhook URL is configured.
func (c *Config) WebhookConfig() (monitor.WebhookConfig, bool) {
	a := c.Alerts
	if a.WebhookURL == "" {
		return monitor.WebhookConfig{}, false
	}
	return monitor.WebhookConfig{
		URL:                a.WebhookURL,
		Headers:            a.WebhookHeaders,
		Timeout:            a.WebhookTimeout,
		RateLimit:          a.WebhookRateLimit,
		Burst:              a.WebhookBurst,
		BreakerFailures:    a.WebhookBreakerFailures,
		BreakerTimeout:     a.WebhookBreakerTimeout,
		BreakerMaxRequests: a.WebhookBreakerMaxRequests,
	}, true
}

// DatabaseConfig converts to the DuckDB connection configuration.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Path:      c.Audit.DuckDBPath,
		Threads:   c.Audit.DuckDBThreads,
		MaxMemory: c.Audit.DuckDBMaxMemory,
	}
}

// WALConfig converts the audit WAL settings.
func (c *Config) WALConfig() wal.Config {
	cfg := wal.DefaultConfig()
	cfg.Path = c.Audit.WALPath
	cfg.SyncWrites = c.Audit.WALSyncWrites
	cfg.EntryTTL = c.Audit.WALEntryTTL
	cfg.MaxRetries = c.Audit.WALMaxRetries
	cfg.RetryInterval = c.Audit.WALRetryInterval
	cfg.RetryBackoff = c.Audit.WALRetryBackoff
	cfg.MaxBackoff = c.Audit.WALMaxBackoff
	return cfg
}

// TreeConfig converts to the supervisor tree configuration.
func (c *Config) TreeConfig() supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.Supervisor.FailureThreshold,
		FailureDecay:     c.Supervisor.FailureDecay,
		FailureBackoff:   c.Supervisor.FailureBackoff,
		ShutdownTimeout:  c.Supervisor.ShutdownTimeout,
	}
}
