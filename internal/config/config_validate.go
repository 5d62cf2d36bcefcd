// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/validation"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks struct tags first, then the cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateAudit(); err != nil {
		return err
	}

	if err := c.validateSession(); err != nil {
		return err
	}

	if err := c.validateRisk(); err != nil {
		return err
	}

	if err := c.validateMonitor(); err != nil {
		return err
	}

	return c.validateSupervisor()
}

func (c *Config) validateServer() error {
	if err := requirePositive("HTTP_READ_TIMEOUT", c.Server.ReadTimeout); err != nil {
		return err
	}
	if err := requirePositive("HTTP_WRITE_TIMEOUT", c.Server.WriteTimeout); err != nil {
		return err
	}
	if err := requirePositive("HTTP_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_REQUESTS is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got: %s)", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console (got: %s)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.Store == "duckdb" && c.Audit.DuckDBPath == "" {
		return fmt.Errorf("AUDIT_DUCKDB_PATH is required when AUDIT_STORE=duckdb")
	}
	if err := requirePositive("AUDIT_WRITE_TIMEOUT", c.Audit.WriteTimeout); err != nil {
		return err
	}
	if !c.Audit.WALEnabled {
		return nil
	}
	walCfg := c.WALConfig()
	if err := walCfg.Validate(); err != nil {
		return fmt.Errorf("audit WAL: %w", err)
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Store {
	case "badger":
		if c.Session.BadgerPath == "" {
			return fmt.Errorf("SESSION_BADGER_PATH is required when SESSION_STORE=badger")
		}
	case "redis":
		if len(c.Session.RedisAddrs) == 0 {
			return fmt.Errorf("REDIS_ADDRS is required when SESSION_STORE=redis")
		}
	}
	if err := requirePositive("SESSION_TTL", c.Session.TTL); err != nil {
		return err
	}
	if err := requirePositive("SESSION_CLEANUP_INTERVAL", c.Session.CleanupInterval); err != nil {
		return err
	}
	return requirePositive("SESSION_RECENT_WINDOW", c.Session.RecentWindow)
}

func (c *Config) validateRisk() error {
	return requirePositive("RISK_WINDOW", c.Risk.Window)
}

func (c *Config) validateMonitor() error {
	if !c.Monitor.Enabled {
		return nil
	}
	windows := []struct {
		name string
		d    time.Duration
	}{
		{"MONITOR_INTERVAL", c.Monitor.Interval},
		{"MONITOR_SWEEP_TIMEOUT", c.Monitor.SweepTimeout},
		{"monitor.lockout_window", c.Monitor.LockoutWindow},
		{"monitor.brute_force_window", c.Monitor.BruteForceWindow},
		{"monitor.admin_window", c.Monitor.AdminWindow},
		{"monitor.data_access_window", c.Monitor.DataAccessWindow},
	}
	for _, w := range windows {
		if err := requirePositive(w.name, w.d); err != nil {
			return err
		}
	}
	if c.Monitor.SweepTimeout > c.Monitor.Interval {
		return fmt.Errorf("MONITOR_SWEEP_TIMEOUT (%s) must not exceed MONITOR_INTERVAL (%s)",
			c.Monitor.SweepTimeout, c.Monitor.Interval)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if err := requirePositive("SUPERVISOR_FAILURE_BACKOFF", c.Supervisor.FailureBackoff); err != nil {
		return err
	}
	return requirePositive("SUPERVISOR_SHUTDOWN_TIMEOUT", c.Supervisor.ShutdownTimeout)
}

func requirePositive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive (got: %s)", name, d)
	}
	return nil
}
