// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package wal

import (
	"fmt"
	"time"
)

// Config controls the spool.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the spool in memory. Tests only; nothing survives a restart.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// EntryTTL discards entries older than this.
	EntryTTL time.Duration

	// MaxRetries discards entries after this many failed replays.
	MaxRetries int

	// RetryInterval is how often the retry service replays.
	RetryInterval time.Duration

	// RetryBackoff is the base delay after a failed replay.
	RetryBackoff time.Duration

	// MaxBackoff caps the delay between replays of one entry.
	MaxBackoff time.Duration

	// ReplayTimeout bounds each Replayer call.
	ReplayTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "/data/audit-wal",
		SyncWrites:    true,
		EntryTTL:      7 * 24 * time.Hour,
		MaxRetries:    100,
		RetryInterval: 30 * time.Second,
		RetryBackoff:  5 * time.Second,
		MaxBackoff:    5 * time.Minute,
		ReplayTimeout: 10 * time.Second,
	}
}

// ConfigError reports an invalid field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wal config: %s %s", e.Field, e.Message)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return &ConfigError{Field: "Path", Message: "is required"}
	}
	if c.EntryTTL <= 0 {
		return &ConfigError{Field: "EntryTTL", Message: "must be positive"}
	}
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if c.RetryInterval <= 0 {
		return &ConfigError{Field: "RetryInterval", Message: "must be positive"}
	}
	if c.RetryBackoff <= 0 {
		return &ConfigError{Field: "RetryBackoff", Message: "must be positive"}
	}
	if c.MaxBackoff < c.RetryBackoff {
		return &ConfigError{Field: "MaxBackoff", Message: "must not be less than RetryBackoff"}
	}
	if c.ReplayTimeout <= 0 {
		return &ConfigError{Field: "ReplayTimeout", Message: "must be positive"}
	}
	return nil
}
