// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// ActorType identifies who performed an action.
type ActorType string

// Actor types.
const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Severity is the importance of an audit entry.
type Severity string

// Entry severities. Admin and financial actions are always high.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// SecurityEventType classifies a security event. The set is open: callers
// may record types not listed here.
type SecurityEventType string

// Known security event types.
const (
	EventFailedLogin          SecurityEventType = "failed_login"
	EventAccountLocked        SecurityEventType = "account_locked"
	EventPasswordReset        SecurityEventType = "password_reset"
	EventPasswordChanged      SecurityEventType = "password_changed"
	EventFailedPasswordChange SecurityEventType = "failed_password_change"
	EventPasswordForcedChange SecurityEventType = "password_forced_change"
	EventMFAEnabled           SecurityEventType = "mfa_enabled"
	EventMFADisabled          SecurityEventType = "mfa_disabled"
	EventSuspiciousActivity   SecurityEventType = "suspicious_activity"
	EventSessionCreated       SecurityEventType = "session_created"
	EventSessionRevoked       SecurityEventType = "session_revoked"
)

// Source describes who issued a request and from where.
type Source struct {
	ActorID   string    `json:"actor_id"`
	ActorType ActorType `json:"actor_type"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	SessionID string    `json:"session_id,omitempty"`
}

// Entry is one audit log record. Entries are immutable once written.
type Entry struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	ActorType  ActorType       `json:"actor_type"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	IPAddress  string          `json:"ip_address"`
	UserAgent  string          `json:"user_agent"`
	SessionID  string          `json:"session_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Severity   Severity        `json:"severity"`
}

// SecurityEvent is one security-relevant occurrence, possibly without a known user.
type SecurityEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	EventType SecurityEventType `json:"event_type"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	Timestamp time.Time         `json:"timestamp"`
	Details   json.RawMessage   `json:"details,omitempty"`
}

// Action describes a user action to record.
type Action struct {
	Name       string
	TargetType string
	TargetID   string
	Changes    map[string]interface{}
	// Severity defaults to low when empty.
	Severity Severity
}

// EntryFilter selects audit entries. Zero values mean "no constraint".
// The time range is half-open: From <= timestamp < To.
type EntryFilter struct {
	ActorID    string
	Action     string
	TargetType string
	Severities []Severity
	// ActionContains matches entries whose action contains any of the substrings.
	ActionContains []string
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
}

// SecurityEventFilter selects security events. Zero values mean "no constraint".
type SecurityEventFilter struct {
	UserID     string
	EventTypes []SecurityEventType
	IPAddress  string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Store persists audit entries and security events. It is append-only:
// nothing in the interface updates or deletes a record. Queries return
// records newest first.
type Store interface {
	SaveEntry(ctx context.Context, entry *Entry) error
	SaveSecurityEvent(ctx context.Context, event *SecurityEvent) error
	QueryEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	CountEntries(ctx context.Context, filter EntryFilter) (int64, error)
	QuerySecurityEvents(ctx context.Context, filter SecurityEventFilter) ([]SecurityEvent, error)
	CountSecurityEvents(ctx context.Context, filter SecurityEventFilter) (int64, error)
}

// TimeRange echoes the bounds a report was computed over.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Report aggregates audit activity over a time range.
type Report struct {
	TotalEntries   int              `json:"total_entries"`
	ByAction       map[string]int   `json:"entries_by_action"`
	BySeverity     map[Severity]int `json:"entries_by_severity"`
	SecurityEvents int64            `json:"security_events"`
	TimeRange      TimeRange        `json:"time_range"`
}

// RiskAssessment is the result of scoring a user's recent history.
type RiskAssessment struct {
	UserID     string   `json:"user_id"`
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons"`
	RiskScore  int      `json:"risk_score"`
}
