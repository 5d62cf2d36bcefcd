// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package monitor

import (
	"context"
	"time"

	"github.com/tomtom215/sentinel/internal/audit"
)

// Severity indicates how urgently an alert needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Check names. They label alerts and metrics.
const (
	CheckAccountLockouts = "account_lockouts"
	CheckBruteForce      = "brute_force"
	CheckAdminActivity   = "admin_activity"
	CheckDataAccess      = "data_access"
)

// Alert is one finding from a monitor sweep.
type Alert struct {
	ID        string                 `json:"id"`
	Check     string                 `json:"check"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// AuditReader is the slice of the audit query API the monitor needs.
// *audit.Logger satisfies it.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, filter audit.EntryFilter) ([]audit.Entry, error)
	GetSecurityEvents(ctx context.Context, filter audit.SecurityEventFilter) ([]audit.SecurityEvent, error)
}

// AlertSink delivers alerts to an operator-facing channel.
type AlertSink interface {
	Send(ctx context.Context, alert *Alert) error
	Name() string
}

// Thresholds configures the four sweep checks. A count must exceed its
// maximum to raise an alert.
type Thresholds struct {
	LockoutWindow time.Duration `json:"lockout_window"`
	MaxLockouts   int           `json:"max_lockouts"`

	BruteForceWindow     time.Duration `json:"brute_force_window"`
	MaxFailedLoginsPerIP int           `json:"max_failed_logins_per_ip"`

	AdminWindow     time.Duration `json:"admin_window"`
	MaxAdminActions int           `json:"max_admin_actions"`

	DataAccessWindow time.Duration `json:"data_access_window"`
	MaxDataExports   int           `json:"max_data_exports"`
}

// DefaultThresholds returns the standard sweep thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LockoutWindow:        time.Hour,
		MaxLockouts:          10,
		BruteForceWindow:     time.Hour,
		MaxFailedLoginsPerIP: 20,
		AdminWindow:          24 * time.Hour,
		MaxAdminActions:      50,
		DataAccessWindow:     24 * time.Hour,
		MaxDataExports:       10,
	}
}
