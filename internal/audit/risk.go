// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Risk reasons, in the order rules are evaluated.
const (
	ReasonHighFrequency   = "High frequency of actions detected"
	ReasonFailedLogins    = "Multiple failed login attempts"
	ReasonMultipleIPs     = "Activity from multiple IP addresses"
	ReasonAdminActions    = "Attempted admin actions"
	ReasonMultipleExports = "Multiple data export attempts"
)

// RiskPolicy holds the thresholds and weights of the suspicious-activity
// rules. Each rule fires when its count is strictly greater than the
// threshold and adds its weight to the score.
type RiskPolicy struct {
	Window time.Duration `json:"window"`

	MaxActions    int `json:"max_actions"`
	ActionsWeight int `json:"actions_weight"`

	MaxFailedLogins    int `json:"max_failed_logins"`
	FailedLoginsWeight int `json:"failed_logins_weight"`

	MaxDistinctIPs    int `json:"max_distinct_ips"`
	DistinctIPsWeight int `json:"distinct_ips_weight"`

	// Any action containing "admin" fires this rule.
	AdminWeight int `json:"admin_weight"`

	MaxExports    int `json:"max_exports"`
	ExportsWeight int `json:"exports_weight"`

	// SuspiciousAbove is the score a user must exceed to be flagged.
	SuspiciousAbove int `json:"suspicious_above"`
}

// DefaultRiskPolicy returns the standard scoring rules.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
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
	}
}

// ScoreActivity applies the policy to a user's entries and security events.
// It is pure: the same input always yields the same assessment, and adding
// qualifying records never lowers the score.
func ScoreActivity(policy RiskPolicy, entries []Entry, events []SecurityEvent) RiskAssessment {
	reasons := make([]string, 0, 5)
	score := 0

	if len(entries) > policy.MaxActions {
		reasons = append(reasons, ReasonHighFrequency)
		score += policy.ActionsWeight
	}

	failedLogins := 0
	for i := range events {
		if events[i].EventType == EventFailedLogin {
			failedLogins++
		}
	}
	if failedLogins > policy.MaxFailedLogins {
		reasons = append(reasons, ReasonFailedLogins)
		score += policy.FailedLoginsWeight
	}

	ips := make(map[string]struct{})
	adminActions, exports := 0, 0
	for i := range entries {
		ips[entries[i].IPAddress] = struct{}{}
		if strings.Contains(entries[i].Action, "admin") {
			adminActions++
		}
		if strings.Contains(entries[i].Action, "export") {
			exports++
		}
	}
	if len(ips) > policy.MaxDistinctIPs {
		reasons = append(reasons, ReasonMultipleIPs)
		score += policy.DistinctIPsWeight
	}
	if adminActions > 0 {
		reasons = append(reasons, ReasonAdminActions)
		score += policy.AdminWeight
	}
	if exports > policy.MaxExports {
		reasons = append(reasons, ReasonMultipleExports)
		score += policy.ExportsWeight
	}

	return RiskAssessment{
		Suspicious: score > policy.SuspiciousAbove,
		Reasons:    reasons,
		RiskScore:  score,
	}
}

// DetectSuspiciousActivity scores a user's activity over the trailing
// window. A non-positive window uses the policy window.
func (l *Logger) DetectSuspiciousActivity(ctx context.Context, userID string, window time.Duration) (*RiskAssessment, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	policy := l.config.Risk
	if window <= 0 {
		window = policy.Window
	}
	from := l.now().UTC().Add(-window)

	entries, err := l.store.QueryEntries(ctx, EntryFilter{ActorID: userID, From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for risk assessment: %w", err)
	}
	events, err := l.store.QuerySecurityEvents(ctx, SecurityEventFilter{UserID: userID, From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to load security events for risk assessment: %w", err)
	}

	assessment := ScoreActivity(policy, entries, events)
	assessment.UserID = userID
	metrics.RecordRiskAssessment(assessment.Suspicious)

	if assessment.Suspicious {
		logging.Ctx(ctx).Warn().
			Str("user_id", userID).
			Int("risk_score", assessment.RiskScore).
			Strs("reasons", assessment.Reasons).
			Msg("Suspicious activity detected")
	}

	return &assessment, nil
}
