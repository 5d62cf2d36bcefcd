// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package session

import (
	"context"
	"fmt"
	"sort"
)

// Concurrent-session findings.
const (
	ReasonManyConcurrent = "High number of concurrent sessions"
	ReasonManyIPs        = "Sessions from multiple IP addresses"
	ReasonRapidCreation  = "Multiple sessions created recently"
)

// ConcurrentReport describes a user's live sessions and any suspicious
// patterns among them.
type ConcurrentReport struct {
	Suspicious     bool     `json:"suspicious"`
	Reasons        []string `json:"suspicious_patterns"`
	ActiveSessions int      `json:"active_sessions_count"`
	UniqueIPs      []string `json:"unique_ips"`
	UniqueDevices  []string `json:"unique_devices"`
}

// DetectConcurrentSessions flags users with too many live sessions, too
// many source addresses or a burst of recent logins. Every unrevoked session
// counts, including one past expiry that no validity check has revoked yet.
// It only reports; no session is revoked.
func (m *Manager) DetectConcurrentSessions(ctx context.Context, userID string) (*ConcurrentReport, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := m.now()
	policy := m.config.Concurrency
	recentCutoff := now.Add(-policy.RecentWindow)

	ips := make(map[string]struct{})
	devices := make(map[string]struct{})
	var active, recent int
	for _, s := range sessions {
		if s.IsRevoked() {
			continue
		}
		active++
		ips[s.IPAddress] = struct{}{}
		devices[s.DeviceFingerprint] = struct{}{}
		if s.CreatedAt.After(recentCutoff) {
			recent++
		}
	}

	report := &ConcurrentReport{
		Reasons:        []string{},
		ActiveSessions: active,
		UniqueIPs:      sortedKeys(ips),
		UniqueDevices:  sortedKeys(devices),
	}
	if active > policy.MaxActiveSessions {
		report.Reasons = append(report.Reasons, ReasonManyConcurrent)
	}
	if len(ips) > policy.MaxDistinctIPs {
		report.Reasons = append(report.Reasons, ReasonManyIPs)
	}
	if recent > policy.MaxRecentSessions {
		report.Reasons = append(report.Reasons, ReasonRapidCreation)
	}
	report.Suspicious = len(report.Reasons) > 0

	return report, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
