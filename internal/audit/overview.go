// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimeframe is returned for an unknown overview timeframe.
var ErrInvalidTimeframe = errors.New("invalid timeframe: must be one of 1h, 24h, 7d, 30d")

// Overview timeframes.
var timeframes = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

const recentLimit = 10

// ParseTimeframe converts an overview timeframe to a duration. Empty means 24h.
func ParseTimeframe(tf string) (time.Duration, error) {
	if tf == "" {
		tf = "24h"
	}
	d, ok := timeframes[tf]
	if !ok {
		return 0, ErrInvalidTimeframe
	}
	return d, nil
}

// SessionCounter reports how many sessions are currently active.
type SessionCounter interface {
	CountActiveSessions(ctx context.Context) (int, error)
}

// EventSummary groups security events over the overview window.
type EventSummary struct {
	Total  int                       `json:"total"`
	ByType map[SecurityEventType]int `json:"by_type"`
	Recent []SecurityEvent           `json:"recent"`
}

// ActivitySummary groups audit entries over the overview window.
type ActivitySummary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByAction   map[string]int   `json:"by_action"`
	Recent     []Entry          `json:"recent"`
}

// AuthSummary counts authentication-related security events.
type AuthSummary struct {
	FailedLogins    int `json:"failed_logins"`
	AccountLockouts int `json:"account_lockouts"`
	PasswordResets  int `json:"password_resets"`
	MFAEvents       int `json:"mfa_events"`
}

// OverviewRisk is the aggregate risk over the overview window.
type OverviewRisk struct {
	Score           int      `json:"overall_risk_score"`
	Factors         []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
}

// SecurityOverview is the administrator's summary of security activity.
type SecurityOverview struct {
	Timeframe       string          `json:"timeframe"`
	From            time.Time       `json:"from"`
	SecurityEvents  EventSummary    `json:"security_events"`
	AuditActivity   ActivitySummary `json:"audit_activity"`
	Authentication  AuthSummary     `json:"authentication"`
	ActiveSessions  int             `json:"active_sessions"`
	PrivacyRequests int             `json:"privacy_requests"`
	Risk            OverviewRisk    `json:"risk_assessment"`
}

// SecurityOverview summarizes security events and audit activity over the
// trailing timeframe. sessions may be nil.
func (l *Logger) SecurityOverview(ctx context.Context, timeframe string, sessions SessionCounter) (*SecurityOverview, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	window, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if timeframe == "" {
		timeframe = "24h"
	}
	from := l.now().UTC().Add(-window)

	events, err := l.store.QuerySecurityEvents(ctx, SecurityEventFilter{From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to load security events for overview: %w", err)
	}
	entries, err := l.store.QueryEntries(ctx, EntryFilter{From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for overview: %w", err)
	}

	ov := &SecurityOverview{
		Timeframe:      timeframe,
		From:           from,
		SecurityEvents: summarizeEvents(events),
		AuditActivity:  summarizeEntries(entries),
	}
	ov.Authentication = AuthSummary{
		FailedLogins:    ov.SecurityEvents.ByType[EventFailedLogin],
		AccountLockouts: ov.SecurityEvents.ByType[EventAccountLocked],
		PasswordResets:  ov.SecurityEvents.ByType[EventPasswordReset],
		MFAEvents:       ov.SecurityEvents.ByType[EventMFAEnabled] + ov.SecurityEvents.ByType[EventMFADisabled],
	}

	exports, privileged := 0, 0
	for i := range entries {
		action := entries[i].Action
		if strings.Contains(action, PrivacyDataExport) {
			exports++
		}
		if strings.Contains(action, PrivacyDataExport) || strings.Contains(action, PrivacyDataDeletion) {
			ov.PrivacyRequests++
		}
		if strings.Contains(action, "admin") || strings.Contains(action, "delete") {
			privileged++
		}
	}

	ov.Risk = assessOverview(ov.Authentication, ov.AuditActivity.BySeverity[SeverityHigh],
		ov.SecurityEvents.ByType[EventMFADisabled], exports, privileged)

	if sessions != nil {
		n, err := sessions.CountActiveSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count active sessions: %w", err)
		}
		ov.ActiveSessions = n
	}

	return ov, nil
}

func summarizeEvents(events []SecurityEvent) EventSummary {
	s := EventSummary{
		Total:  len(events),
		ByType: make(map[SecurityEventType]int),
		Recent: events[:min(len(events), recentLimit)],
	}
	for i := range events {
		s.ByType[events[i].EventType]++
	}
	return s
}

func summarizeEntries(entries []Entry) ActivitySummary {
	s := ActivitySummary{
		Total:      len(entries),
		BySeverity: make(map[Severity]int),
		ByAction:   make(map[string]int),
		Recent:     entries[:min(len(entries), recentLimit)],
	}
	for i := range entries {
		s.BySeverity[entries[i].Severity]++
		s.ByAction[entries[i].Action]++
	}
	return s
}

// assessOverview scores the window: failed logins weigh 2, lockouts 5 and
// high-severity entries 3, capped at 100.
func assessOverview(auth AuthSummary, highSeverity, mfaDisabled, exports, privileged int) OverviewRisk {
	risk := OverviewRisk{
		Score:           min(auth.FailedLogins*2+auth.AccountLockouts*5+highSeverity*3, 100),
		Factors:         []string{},
		Recommendations: []string{},
	}

	if auth.FailedLogins > 10 {
		risk.Factors = append(risk.Factors, fmt.Sprintf("High number of failed login attempts: %d", auth.FailedLogins))
	}
	if auth.AccountLockouts > 5 {
		risk.Factors = append(risk.Factors, fmt.Sprintf("Multiple account lockouts detected: %d", auth.AccountLockouts))
	}
	if exports > 5 {
		risk.Factors = append(risk.Factors, fmt.Sprintf("Unusual number of data exports: %d", exports))
	}

	if auth.FailedLogins > 20 {
		risk.Recommendations = append(risk.Recommendations,
			"Consider implementing additional rate limiting for login attempts",
			"Review and potentially strengthen password policies")
	}
	if auth.AccountLockouts > 10 {
		risk.Recommendations = append(risk.Recommendations,
			"Investigate potential brute force attacks",
			"Consider implementing CAPTCHA for repeated failed attempts")
	}
	if mfaDisabled > 0 {
		risk.Recommendations = append(risk.Recommendations,
			"Review MFA disable events and consider enforcing MFA for sensitive accounts")
	}
	if privileged > 50 {
		risk.Recommendations = append(risk.Recommendations,
			"High volume of privileged actions detected - review admin activity")
	}
	if len(risk.Recommendations) == 0 {
		risk.Recommendations = append(risk.Recommendations, "Security posture appears healthy - continue monitoring")
	}

	return risk
}
